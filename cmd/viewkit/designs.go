package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/viewkit/viewkit"
)

var designExtensions = map[string]bool{
	".json": true,
	".yaml": true,
	".yml":  true,
}

// designName derives a design document name from its file name
func designName(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// loadDesigns stores every design document found in dir, named after its file
func loadDesigns(ctx context.Context, bucket *viewkit.Bucket, dir string) ([]string, error) {
	var names []string
	err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() || !designExtensions[strings.ToLower(filepath.Ext(path))] {
			return nil
		}
		bits, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		doc, err := bucket.PutDesign(ctx, designName(path), bits)
		if err != nil {
			return err
		}
		names = append(names, doc.Name)
		return nil
	})
	return names, err
}
