// Package scan builds a content inventory of a local project folder.
package scan

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/draftsync/draftsync/pkg/models"
)

// ChatsDir is the reserved subfolder for conversation threads. It is
// remote-authoritative and never part of the file diff.
const ChatsDir = "chats"

// MarkerDir holds per-project sync state (marker, inventory snapshot).
const MarkerDir = ".draftsync"

// Scan walks dir into an inventory keyed by forward-slash relative
// path. Reserved subfolders and dot-entries are skipped. A missing dir
// yields an empty inventory, not an error.
func Scan(dir string) (models.Inventory, error) {
	inv := make(models.Inventory)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir && os.IsNotExist(err) {
				return filepath.SkipAll
			}
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == dir {
				return nil
			}
			if strings.HasPrefix(name, ".") || skipDir(dir, path) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		rel = norm.NFC.String(filepath.ToSlash(rel))

		info, err := d.Info()
		if err != nil {
			return err
		}
		hash, err := HashFile(path)
		if err != nil {
			return fmt.Errorf("hash %s: %w", rel, err)
		}
		inv[rel] = models.FileRecord{
			RelativePath: rel,
			ContentHash:  hash,
			SizeBytes:    info.Size(),
			ModifiedAt:   info.ModTime().UTC(),
			ExistsLocally: true,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func skipDir(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	top := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	return top == ChatsDir || top == MarkerDir
}

// HashFile returns the hex MD5 digest of a file's contents. The remote
// store reports MD5 digests, so both sides must agree on the function.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashBytes returns the hex MD5 digest of b.
func HashBytes(b []byte) string {
	sum := md5.Sum(b)
	return hex.EncodeToString(sum[:])
}
