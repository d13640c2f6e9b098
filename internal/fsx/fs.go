// Package fsx provides the filesystem abstraction every on-disk component
// (document codec, system index, atomic writer, cross-process locker)
// reads and writes through. Paths use OS semantics, not the slash-separated
// paths of the standard library io/fs package.
package fsx

import (
	"io"
	"os"
)

// File represents an OS-backed open file descriptor, satisfied by [os.File].
//
// Implementations must behave like [os.File], including that [File.Fd]
// returns a valid OS file descriptor usable with syscalls (for example
// [syscall.Flock]) until the file is closed. Implementations must be safe
// for concurrent use by multiple goroutines.
type File interface {
	io.ReadWriteCloser
	io.Seeker

	Fd() uintptr
	Stat() (os.FileInfo, error)
	Sync() error
	Chmod(mode os.FileMode) error
}

// FS defines filesystem operations for reading, writing, and managing
// files. The only implementation is [Real]; the interface exists so
// components under test can substitute an in-memory or fault-injecting
// filesystem without changing call sites.
type FS interface {
	Open(path string) (File, error)
	Create(path string) (File, error)
	OpenFile(path string, flag int, perm os.FileMode) (File, error)
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte, perm os.FileMode) error
	ReadDir(path string) ([]os.DirEntry, error)
	MkdirAll(path string, perm os.FileMode) error
	Stat(path string) (os.FileInfo, error)
	Exists(path string) (bool, error)
	Remove(path string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

var _ File = (*os.File)(nil)
