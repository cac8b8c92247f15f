package urlstrategy

import (
	"fmt"
	"strings"
)

// DefaultPublicDomain is the storage provider domain used for virtual-hosted
// public URLs.
const DefaultPublicDomain = "digitaloceanspaces.com"

// URLStrategy defines the interface for public URL generation strategies.
// Implementations must be deterministic and never perform I/O.
type URLStrategy interface {
	PublicURL(objectKey string) string
}

// VirtualHostStrategy builds https://{bucket}.{region}.{domain}/{key}
type VirtualHostStrategy struct {
	Bucket string
	Region string
	Domain string
}

// NewVirtualHostStrategy creates a strategy for a bucket in region. An empty
// domain defaults to DefaultPublicDomain.
func NewVirtualHostStrategy(bucket, region, domain string) *VirtualHostStrategy {
	if domain == "" {
		domain = DefaultPublicDomain
	}
	return &VirtualHostStrategy{Bucket: bucket, Region: region, Domain: domain}
}

func (s *VirtualHostStrategy) PublicURL(objectKey string) string {
	return Escape(fmt.Sprintf("https://%s.%s.%s/%s", s.Bucket, s.Region, s.Domain, objectKey))
}

// CDNStrategy generates URLs that point directly to a CDN in front of the bucket
type CDNStrategy struct {
	CDNBaseURL string // e.g., "https://cdn.example.com"
}

// NewCDNStrategy creates a new CDN URL strategy
func NewCDNStrategy(cdnBaseURL string) *CDNStrategy {
	return &CDNStrategy{CDNBaseURL: strings.TrimSuffix(cdnBaseURL, "/")}
}

func (s *CDNStrategy) PublicURL(objectKey string) string {
	return s.CDNBaseURL + "/" + escapeKey(objectKey)
}

// Escape percent-encodes every byte except ASCII letters, digits, "_.-~"
// and the separators ":" and "/".
func Escape(s string) string {
	return escape(s, ":/")
}

func escapeKey(key string) string {
	return escape(key, "/")
}

func escape(s, safe string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) || strings.IndexByte(safe, c) >= 0 {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0F])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	case c == '-', c == '_', c == '.', c == '~':
		return true
	}
	return false
}
