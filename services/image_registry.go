// file: services/image_registry.go
package services

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

// ImageRegistry resolves a challenge id to the backend image identifier.
// The mapping is read once at startup and immutable afterwards; changing
// it requires a restart.
type ImageRegistry struct {
	images map[string]string
}

func LoadImageRegistry(path string) (*ImageRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMappingFileUnreadable, err)
	}
	var images map[string]string
	if err := json.Unmarshal(data, &images); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMappingFileMalformed, err)
	}
	return &ImageRegistry{images: images}, nil
}

func (r *ImageRegistry) Resolve(challengeID uint32) (string, error) {
	image, ok := r.images[strconv.FormatUint(uint64(challengeID), 10)]
	if !ok {
		return "", &ImageNotMappedError{ChallengeID: challengeID}
	}
	return image, nil
}
