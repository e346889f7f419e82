package shared

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
)

// renameFunc is swapped in tests to simulate EXDEV and locked destinations.
var renameFunc = os.Rename

// CrossDeviceError reports a rename that failed because source and destination live on different filesystems.
//
// Images are never copied and deleted as a fallback.
type CrossDeviceError struct {
	Src string
	Dst string
	Err error
}

func (e *CrossDeviceError) Error() string {
	return fmt.Sprintf("cannot move %q to %q across filesystems: %v", e.Src, e.Dst, e.Err)
}

func (e *CrossDeviceError) Unwrap() error { return e.Err }

// IsCrossDevice reports whether err is a [CrossDeviceError].
func IsCrossDevice(err error) bool {
	var e *CrossDeviceError
	return errors.As(err, &e)
}

// ListImages returns the regular, non-hidden files directly under dir in lexicographic order.
func ListImages(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read inbox %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		names = append(names, entry.Name())
	}

	sort.Strings(names)
	return names, nil
}

// EnsureDirs creates every directory in dirs, including parents.
func EnsureDirs(dirs ...string) error {
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// MoveInto renames src into dir, keeping its base name, and returns the new path.
//
// An existing file of the same name in dir is never overwritten.
func MoveInto(src, dir string) (string, error) {
	dst := filepath.Join(dir, filepath.Base(src))
	if _, err := os.Lstat(dst); err == nil {
		return "", fmt.Errorf("failed to move %s: %w", src, os.ErrExist)
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to stat %s: %w", dst, err)
	}

	if err := renameFunc(src, dst); err != nil {
		if isEXDEV(err) {
			return "", &CrossDeviceError{Src: src, Dst: dst, Err: err}
		}
		return "", fmt.Errorf("failed to move %s: %w", src, err)
	}

	return dst, nil
}

// VerifyAndReadFile reads path after checking that it is a non-empty regular file.
func VerifyAndReadFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s is not a regular file", ErrInvalidInput, path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyImage, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return data, nil
}

func isEXDEV(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}
