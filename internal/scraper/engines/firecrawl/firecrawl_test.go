package firecrawl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"harvest-engine/internal/config"
	"harvest-engine/pkg/utils"
)

func TestRenderer_DisabledWithoutKey(t *testing.T) {
	r := NewRenderer(config.Default())
	assert.False(t, r.Enabled())

	_, err := r.Render(context.Background(), "https://acme.example/careers")
	assert.Equal(t, utils.KindConfiguration, utils.KindOf(err))
}
