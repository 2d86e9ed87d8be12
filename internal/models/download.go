// Package models fetches the model files a registered speech recognition
// model needs into the local models directory.
package models

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/chaz8081/gostt-edge/internal/asr"
)

const zooBaseURL = "https://github.com/ARM-software/ML-zoo/raw/master/models/speech_recognition/tiny_wav2letter"

// ErrNoSource is returned for a model file with no known download location.
var ErrNoSource = errors.New("no download source")

// sources maps model files to their download URLs.
var sources = map[string]string{
	"tiny_wav2letter_int8.tflite":        zooBaseURL + "/tflite_int8/tiny_wav2letter_int8.tflite",
	"tiny_wav2letter_pruned_int8.tflite": zooBaseURL + "/tflite_pruned_int8/tiny_wav2letter_pruned_int8.tflite",
}

// Artifact is one downloadable file.
type Artifact struct {
	Model string
	Name  string
	URL   string
}

// Artifacts returns the files model needs.
func Artifacts(model string) ([]Artifact, error) {
	cfg, err := asr.Lookup(model)
	if err != nil {
		return nil, err
	}
	url, ok := sources[cfg.ModelFile]
	if !ok {
		return nil, fmt.Errorf("models: %s: %w", cfg.ModelFile, ErrNoSource)
	}
	return []Artifact{{Model: cfg.Name, Name: cfg.ModelFile, URL: url}}, nil
}

// Catalog lists the artifacts of every registered model that has a known
// download source, ordered by model name.
func Catalog() []Artifact {
	var out []Artifact
	for _, name := range asr.Names() {
		arts, err := Artifacts(name)
		if err != nil {
			continue
		}
		out = append(out, arts...)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Model < out[j].Model })
	return out
}

// Installed reports whether art is present and non-empty in dir.
func Installed(dir string, art Artifact) bool {
	info, err := os.Stat(filepath.Join(dir, art.Name))
	return err == nil && info.Size() > 0
}

// EnsureModel downloads every artifact of model missing from dir and
// returns the artifact paths. Progress is written to progress when non-nil.
func EnsureModel(ctx context.Context, model, dir string, progress io.Writer) ([]string, error) {
	arts, err := Artifacts(model)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(arts))
	for _, art := range arts {
		path, err := Download(ctx, art.URL, dir, art.Name, progress)
		if err != nil {
			return nil, err
		}
		paths = append(paths, path)
	}
	return paths, nil
}

// Download fetches url into dir/name unless a non-empty file is already
// there. The file is written to a temporary name and renamed into place.
func Download(ctx context.Context, url, dir, name string, progress io.Writer) (string, error) {
	if progress == nil {
		progress = io.Discard
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating models dir: %w", err)
	}

	destPath := filepath.Join(dir, name)
	if info, err := os.Stat(destPath); err == nil && info.Size() > 0 {
		fmt.Fprintf(progress, "  %s already exists: %s (%.1f MB)\n", name, destPath, float64(info.Size())/(1024*1024))
		return destPath, nil
	}

	fmt.Fprintf(progress, "  Downloading %s\n  URL: %s\n", name, url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("download %s failed: HTTP %d", name, resp.StatusCode)
	}

	tmpPath := destPath + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}

	pr := &progressWriter{
		writer: f,
		out:    progress,
		total:  resp.ContentLength,
		label:  name,
	}

	written, err := io.Copy(pr, resp.Body)
	f.Close()
	if err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("writing model file: %w", err)
	}
	if written == 0 {
		os.Remove(tmpPath)
		return "", fmt.Errorf("download %s: empty response", name)
	}

	fmt.Fprintf(progress, "\n  Downloaded %.1f MB\n", float64(written)/(1024*1024))

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", fmt.Errorf("moving model file: %w", err)
	}
	return destPath, nil
}

// progressWriter wraps an io.Writer and reports download progress to out.
type progressWriter struct {
	writer  io.Writer
	out     io.Writer
	total   int64
	written int64
	label   string
}

func (pw *progressWriter) Write(p []byte) (int, error) {
	n, err := pw.writer.Write(p)
	pw.written += int64(n)
	if pw.total > 0 {
		pct := float64(pw.written) / float64(pw.total) * 100
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB / %.1f MB (%.0f%%)",
			pw.label,
			float64(pw.written)/(1024*1024),
			float64(pw.total)/(1024*1024),
			pct)
	} else {
		fmt.Fprintf(pw.out, "\r  %s: %.1f MB downloaded",
			pw.label,
			float64(pw.written)/(1024*1024))
	}
	return n, err
}
