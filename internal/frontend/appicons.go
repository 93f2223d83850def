package frontend

import (
	"fmt"
	"slices"
	"sync"

	"github.com/jo-hoe/iconforge/internal/backend/commands"
)

// appIconRenderer rasterises the embedded application icon once per size
type appIconRenderer struct {
	svg   []byte
	sizes []int

	mu    sync.Mutex
	cache map[int][]byte
}

func newAppIconRenderer(svg []byte, sizes []int) *appIconRenderer {
	return &appIconRenderer{
		svg:   svg,
		sizes: sizes,
		cache: make(map[int][]byte),
	}
}

func appIconFilename(size int) string {
	return fmt.Sprintf("icon-%dx%d.png", size, size)
}

// parseAppIconFilename returns the size encoded in an app icon filename
func parseAppIconFilename(name string) (int, bool) {
	var width, height int
	if _, err := fmt.Sscanf(name, "icon-%dx%d.png", &width, &height); err != nil {
		return 0, false
	}
	if width != height || name != appIconFilename(width) {
		return 0, false
	}
	return width, true
}

func (r *appIconRenderer) render(size int) ([]byte, error) {
	if !slices.Contains(r.sizes, size) {
		return nil, fmt.Errorf("app icon size %d is not offered", size)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if data, ok := r.cache[size]; ok {
		return data, nil
	}

	command, err := commands.NewSvgRenderCommand(map[string]any{"size": size})
	if err != nil {
		return nil, fmt.Errorf("failed to create svg render command: %w", err)
	}
	data, err := command.Execute(r.svg)
	if err != nil {
		return nil, fmt.Errorf("failed to render app icon: %w", err)
	}
	r.cache[size] = data
	return data, nil
}
