package storage

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"langtutor/internal/dialogue"
)

var (
	AudioExtensions = []string{".mp3", ".wav", ".ogg", ".m4a"}

	ErrOutsideLibrary = errors.New("path is outside the audio library")
)

type FileInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

func (f FileInfo) SizeMB() float64 {
	return math.Round(float64(f.Size)/(1024*1024)*100) / 100
}

// Library manages the audio directory and the export directory.
type Library struct {
	audioDir  string
	exportDir string
}

func NewLibrary(audioDir, exportDir string) *Library {
	return &Library{
		audioDir:  audioDir,
		exportDir: exportDir,
	}
}

func (l *Library) AudioDir() string {
	return l.audioDir
}

func (l *Library) ExportDir() string {
	return l.exportDir
}

func (l *Library) EnsureDirectories() error {
	if err := os.MkdirAll(l.audioDir, 0755); err != nil {
		return fmt.Errorf("failed to create audio directory: %w", err)
	}

	if err := os.MkdirAll(l.exportDir, 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}

	return nil
}

func (l *Library) SaveAudio(data []byte, filename string) (string, error) {
	return writeFile(l.audioDir, filename, data)
}

func (l *Library) SaveExport(filename string, data []byte) (string, error) {
	return writeFile(l.exportDir, filename, data)
}

func writeFile(dir, filename string, data []byte) (string, error) {
	if filename == "" || filepath.Base(filename) != filename {
		return "", fmt.Errorf("invalid file name %q", filename)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return path, nil
}

// List returns the audio files, newest first. A missing directory is empty.
func (l *Library) List() ([]FileInfo, error) {
	entries, err := os.ReadDir(l.audioDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read audio directory: %w", err)
	}

	var files []FileInfo
	for _, entry := range entries {
		if entry.IsDir() || !isAudio(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, FileInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(l.audioDir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool {
		if files[i].ModTime.Equal(files[j].ModTime) {
			return files[i].Name > files[j].Name
		}
		return files[i].ModTime.After(files[j].ModTime)
	})

	return files, nil
}

func (l *Library) Info(name string) (FileInfo, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return FileInfo{}, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: filepath.Base(path), Path: path, Size: info.Size(), ModTime: info.ModTime()}, nil
}

// Resolve maps a file name or a path to its location inside the audio
// directory and rejects anything that escapes it.
func (l *Library) Resolve(name string) (string, error) {
	if name == "" {
		return "", ErrOutsideLibrary
	}

	dir, err := filepath.Abs(l.audioDir)
	if err != nil {
		return "", err
	}

	path := name
	if !filepath.IsAbs(path) && filepath.Base(path) == path {
		path = filepath.Join(dir, path)
	}
	path, err = filepath.Abs(path)
	if err != nil {
		return "", err
	}

	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrOutsideLibrary
	}
	return path, nil
}

// Delete removes one audio file. It reports false when the file did not exist.
func (l *Library) Delete(name string) (bool, error) {
	path, err := l.Resolve(name)
	if err != nil {
		return false, err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

// Cleanup keeps the keep most recent files and deletes the rest.
func (l *Library) Cleanup(keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}

	files, err := l.List()
	if err != nil {
		return 0, err
	}
	if len(files) <= keep {
		return 0, nil
	}

	deleted := 0
	for _, f := range files[keep:] {
		ok, err := l.Delete(f.Path)
		if err != nil {
			return deleted, err
		}
		if ok {
			deleted++
		}
	}
	return deleted, nil
}

// DeleteDialogueAudio removes every audio file generated for d and clears the
// messages' audio paths.
func (l *Library) DeleteDialogueAudio(d *dialogue.Dialogue) int {
	deleted := 0
	for i := range d.Messages {
		if d.Messages[i].AudioPath == "" {
			continue
		}
		if ok, _ := l.Delete(d.Messages[i].AudioPath); ok {
			deleted++
		}
		d.Messages[i].AudioPath = ""
	}

	if d.ID == "" {
		return deleted
	}
	matches, _ := filepath.Glob(filepath.Join(l.audioDir, dialoguePrefix(d.ID)+"*"))
	for _, m := range matches {
		if ok, _ := l.Delete(m); ok {
			deleted++
		}
	}
	return deleted
}

func dialoguePrefix(id string) string {
	return "dialogue_" + id + "_"
}

// MessageAudioName is the file name for one message's audio.
func MessageAudioName(dialogueID string, index int, ext string) string {
	return fmt.Sprintf("%smessage_%d%s", dialoguePrefix(dialogueID), index, ext)
}

// CompleteAudioName is the file name for a whole dialogue's audio.
func CompleteAudioName(dialogueID, ext string) string {
	return dialoguePrefix(dialogueID) + "complete" + ext
}

func isAudio(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range AudioExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
