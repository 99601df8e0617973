package driver

import (
	"bytes"
	"sync"
)

var (
	nullReply = []byte("null")
	trueReply = []byte("true")
)

// EchoHandler replies with all arguments of the request joined by a space
func EchoHandler(args [][]byte) []byte {
	return bytes.Join(args, []byte(" "))
}

// MapHandler replies with the fixed reply of the command (first argument) and
// falls back to next for unknown commands. A nil next replies "null".
func MapHandler(replies map[string][]byte, next Handler) Handler {
	return func(args [][]byte) []byte {
		if len(args) > 0 {
			if reply, ok := replies[string(args[0])]; ok {
				return reply
			}
		}
		if next == nil {
			return nullReply
		}
		return next(args)
	}
}

// FileStore keeps pushed files in memory and serves them to pull requests
type FileStore struct {
	mu    sync.RWMutex
	files map[string][]byte
}

// NewFileStore creates an empty file store
func NewFileStore() *FileStore {
	return &FileStore{files: make(map[string][]byte)}
}

// Get returns the stored content of path
func (s *FileStore) Get(path string) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[path]
	return data, ok
}

// Handler answers pushFile and pullFile requests and passes all others to next
func (s *FileStore) Handler(next Handler) Handler {
	return func(args [][]byte) []byte {
		if len(args) == 0 {
			return nullReply
		}
		switch string(args[0]) {
		case "pushFile":
			if len(args) != 3 {
				return []byte("false")
			}
			s.mu.Lock()
			s.files[string(args[1])] = bytes.Clone(args[2])
			s.mu.Unlock()
			return trueReply
		case "pullFile":
			if len(args) != 2 {
				return nullReply
			}
			if data, ok := s.Get(string(args[1])); ok {
				return data
			}
			return nullReply
		}
		if next == nil {
			return nullReply
		}
		return next(args)
	}
}
