package logging

import (
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileRotator is an io.Writer over the daemon log file. The file is rotated
// when it would grow past MaxSize megabytes or when the calendar day
// changes; rotated files are optionally gzipped and pruned by count and age.
type FileRotator struct {
	config *Config
	now    func() time.Time

	mu       sync.Mutex
	file     *os.File
	size     int64
	opened   time.Time
	sequence int

	// background compress and prune jobs
	jobs sync.WaitGroup
}

// NewFileRotator opens (or creates) cfg.FilePath for appending.
func NewFileRotator(cfg *Config) (*FileRotator, error) {
	r := &FileRotator{
		config: cfg,
		now:    time.Now,
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0750); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	if err := r.openFile(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *FileRotator) openFile() error {
	file, err := os.OpenFile(r.config.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return fmt.Errorf("stat log file: %w", err)
	}

	r.file = file
	r.size = info.Size()
	r.opened = r.now()
	return nil
}

// Write implements io.Writer.
func (r *FileRotator) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		if err := r.openFile(); err != nil {
			return 0, err
		}
	}

	if r.shouldRotate(int64(len(p))) {
		if err := r.rotate(); err != nil {
			return 0, fmt.Errorf("rotate log: %w", err)
		}
	}

	n, err := r.file.Write(p)
	r.size += int64(n)
	return n, err
}

func (r *FileRotator) shouldRotate(writeSize int64) bool {
	if r.size == 0 {
		return false
	}
	if r.size+writeSize > r.config.MaxSize*1024*1024 {
		return true
	}
	now := r.now()
	return now.YearDay() != r.opened.YearDay() || now.Year() != r.opened.Year()
}

func (r *FileRotator) rotate() error {
	if err := r.file.Close(); err != nil {
		return fmt.Errorf("close current log: %w", err)
	}
	r.file = nil

	name, ext := r.nameParts()
	r.sequence++
	rotated := filepath.Join(filepath.Dir(r.config.FilePath),
		fmt.Sprintf("%s-%s.%d%s", name, r.now().Format("20060102-150405"), r.sequence, ext))

	if err := os.Rename(r.config.FilePath, rotated); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("rename log file: %w", err)
	}

	if err := r.openFile(); err != nil {
		return err
	}

	r.jobs.Add(1)
	go func() {
		defer r.jobs.Done()
		if r.config.Compress {
			compressFile(rotated)
		}
		r.prune()
	}()
	return nil
}

func (r *FileRotator) nameParts() (name, ext string) {
	base := filepath.Base(r.config.FilePath)
	ext = filepath.Ext(base)
	return strings.TrimSuffix(base, ext), ext
}

// compressFile replaces path with path.gz. The original is kept if anything
// goes wrong.
func compressFile(path string) {
	input, err := os.Open(path)
	if err != nil {
		return
	}
	defer input.Close()

	output, err := os.Create(path + ".gz")
	if err != nil {
		return
	}
	defer output.Close()

	gz := gzip.NewWriter(output)
	gz.Name = filepath.Base(path)

	if _, err := io.Copy(gz, input); err != nil {
		gz.Close()
		os.Remove(path + ".gz")
		return
	}
	if err := gz.Close(); err != nil {
		os.Remove(path + ".gz")
		return
	}
	os.Remove(path)
}

// prune removes rotated files beyond MaxBackups and files older than MaxAge days.
func (r *FileRotator) prune() {
	rotated, err := r.rotatedFiles()
	if err != nil {
		return
	}

	type entry struct {
		path    string
		modTime time.Time
	}
	files := make([]entry, 0, len(rotated))
	for _, path := range rotated {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		files = append(files, entry{path: path, modTime: info.ModTime()})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.Before(files[j].modTime)
	})

	excess := len(files) - r.config.MaxBackups
	cutoff := r.now().AddDate(0, 0, -r.config.MaxAge)
	for i, f := range files {
		if i < excess || (r.config.MaxAge > 0 && f.modTime.Before(cutoff)) {
			os.Remove(f.path)
		}
	}
}

func (r *FileRotator) rotatedFiles() ([]string, error) {
	name, ext := r.nameParts()
	pattern := filepath.Join(filepath.Dir(r.config.FilePath), name+"-*"+ext+"*")
	return filepath.Glob(pattern)
}

// Close waits for pending compression and closes the current file.
func (r *FileRotator) Close() error {
	r.jobs.Wait()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		err := r.file.Close()
		r.file = nil
		return err
	}
	return nil
}

// Sync flushes the current file to disk.
func (r *FileRotator) Sync() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file != nil {
		return r.file.Sync()
	}
	return nil
}

// LogFiles returns the current log file followed by every rotated file.
func (r *FileRotator) LogFiles() ([]string, error) {
	files := []string{r.config.FilePath}
	rotated, err := r.rotatedFiles()
	if err != nil {
		return files, err
	}
	return append(files, rotated...), nil
}
