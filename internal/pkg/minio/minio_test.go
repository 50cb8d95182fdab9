package minio

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestObjectName(t *testing.T) {
	name := ObjectName("c1", "photo.PNG", time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC))
	assert.True(t, strings.HasPrefix(name, "chats/c1/20260304/"))
	assert.True(t, strings.HasSuffix(name, ".PNG"))
}

func TestPublicURL(t *testing.T) {
	u := &Uploader{bucket: "parley", publicEndpoint: "cdn.example.com", publicSSL: true}
	assert.Equal(t, "https://cdn.example.com/parley/a/b.png", u.PublicURL("a/b.png"))
}
