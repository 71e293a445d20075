package main

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jwebster45206/scene-engine/pkg/scene"
)

const playerIDFile = "player_id"

var errNotDataURI = errors.New("image is not a data URI")

// loadPlayerID returns the player id saved by a previous run, or "".
func loadPlayerID(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, playerIDFile))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func savePlayerID(dir, playerID string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, playerIDFile), []byte(playerID+"\n"), 0o600)
}

// decodeDataURI splits a base64 data URI into its mime type and payload.
func decodeDataURI(uri string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errNotDataURI
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI: missing payload")
	}
	mimeType, ok := strings.CutSuffix(meta, ";base64")
	if !ok {
		return "", nil, fmt.Errorf("malformed data URI: only base64 payloads are supported")
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("malformed data URI: %w", err)
	}
	return mimeType, data, nil
}

func imageExtension(mimeType string) string {
	switch mimeType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".bin"
	}
}

// saveSceneImage writes a data URI image to dir, named after the scene key.
func saveSceneImage(dir string, key scene.Key, image string) (string, error) {
	mimeType, data, err := decodeDataURI(image)
	if err != nil {
		return "", err
	}

	name := "scene"
	if short := key.Short(); short != "" {
		name += "-" + short
	}
	path := filepath.Join(dir, name+imageExtension(mimeType))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write image: %w", err)
	}
	return path, nil
}

// describeImage is a one-line summary of an image reference for the scene panel.
func describeImage(image string) string {
	if image == "" {
		return ""
	}
	mimeType, data, err := decodeDataURI(image)
	if err != nil {
		if len(image) > 60 {
			return image[:57] + "..."
		}
		return image
	}
	return fmt.Sprintf("%s, %.1f KB", mimeType, float64(len(data))/1024)
}
