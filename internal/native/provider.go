// Package native opens the windowing resources a VA display can be created
// on, for programs that have no renderer of their own.
package native

import (
	"errors"
	"sync"

	"github.com/rs/zerolog"
	"github.com/thesyncim/vaapi"
	"github.com/thesyncim/vaapi/internal/logger"
)

// DefaultRenderNode is the first DRM render node on most systems.
const DefaultRenderNode = "/dev/dri/renderD128"

// Provider implements vaapi.ResourceProvider. Resources are opened on first
// request and cached, including failures, until Close.
type Provider struct {
	RenderNode string

	log zerolog.Logger

	mu      sync.Mutex
	cache   map[string]any
	closers []func() error
	closed  bool
}

// NewProvider returns a provider that opens renderNode for DRM displays.
func NewProvider(renderNode string) *Provider {
	if renderNode == "" {
		renderNode = DefaultRenderNode
	}
	return &Provider{
		RenderNode: renderNode,
		log:        *logger.WithComponent("native"),
		cache:      make(map[string]any),
	}
}

// NativeResource implements vaapi.ResourceProvider.
func (p *Provider) NativeResource(name string) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	if res, ok := p.cache[name]; ok {
		return res
	}

	var (
		res    any
		closer func() error
		err    error
	)
	switch name {
	case vaapi.ResourceX11:
		res, closer, err = openX11(p.log)
	case vaapi.ResourceWayland:
		res, closer, err = openWayland()
	case vaapi.ResourceDRMParams:
		res, closer, err = openRenderNode(p.RenderNode)
	default:
		return nil
	}
	if err != nil {
		p.log.Debug().Err(err).Str("resource", name).Msg("Native resource unavailable")
		res = nil
	}
	p.cache[name] = res
	if closer != nil {
		p.closers = append(p.closers, closer)
	}
	return res
}

// Close releases every opened resource. Displays created on them must have
// been terminated first.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	p.cache = nil
	return errors.Join(errs...)
}
