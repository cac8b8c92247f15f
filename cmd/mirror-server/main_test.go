package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectsPrefix(t *testing.T) {
	assert.Equal(t, "/objects", objectsPrefix("http://localhost:8080/objects"))
	assert.Equal(t, "/media/files", objectsPrefix("https://cdn.test/media/files/"))
	assert.Equal(t, "/objects", objectsPrefix("http://localhost:8080"))
	assert.Equal(t, "/objects", objectsPrefix("http://localhost:8080/"))
}
