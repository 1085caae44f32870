package sigpayload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const maxFontBytes = 10 << 20

// ErrFontNotFound is returned by a FontSource that has no font for a name.
var ErrFontNotFound = errors.New("font not found")

// FontSource loads raw TrueType/OpenType bytes for a font family name.
type FontSource interface {
	Load(ctx context.Context, family string) ([]byte, error)
}

// DirSource loads <family>.ttf or <family>.otf from a directory.
type DirSource struct {
	Dir string
}

func (d DirSource) Load(_ context.Context, family string) ([]byte, error) {
	if d.Dir == "" {
		return nil, ErrFontNotFound
	}
	if strings.ContainsAny(family, `/\`) || strings.Contains(family, "..") {
		return nil, fmt.Errorf("invalid font name %q", family)
	}
	candidates := []string{family, strings.ReplaceAll(family, " ", "")}
	for _, name := range candidates {
		for _, ext := range []string{".ttf", ".otf"} {
			data, err := os.ReadFile(filepath.Join(d.Dir, name+ext))
			if err == nil {
				return data, nil
			}
			if !errors.Is(err, os.ErrNotExist) {
				return nil, err
			}
		}
	}
	return nil, ErrFontNotFound
}

// DefaultFontMissTTL is how long RemoteSource remembers a failed fetch.
const DefaultFontMissTTL = 5 * time.Minute

// RemoteSource fetches fonts over HTTP from a URL template with one %s
// placeholder for the escaped family name. Successful fetches are cached for
// the life of the source and failures for MissTTL.
type RemoteSource struct {
	urlTemplate string
	client      *http.Client

	// MissTTL bounds how long a failed fetch is remembered. Zero disables it.
	MissTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time

	mu     sync.RWMutex
	cache  map[string][]byte
	misses map[string]fontMiss
}

type fontMiss struct {
	err   error
	until time.Time
}

// NewRemoteSource creates a remote font source. An empty template disables it.
func NewRemoteSource(urlTemplate string, timeout time.Duration) *RemoteSource {
	if timeout == 0 {
		timeout = 5 * time.Second
	}
	return &RemoteSource{
		urlTemplate: urlTemplate,
		client:      &http.Client{Timeout: timeout},
		MissTTL:     DefaultFontMissTTL,
		Now:         time.Now,
		cache:       make(map[string][]byte),
		misses:      make(map[string]fontMiss),
	}
}

func (r *RemoteSource) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *RemoteSource) Load(ctx context.Context, family string) ([]byte, error) {
	if r.urlTemplate == "" {
		return nil, ErrFontNotFound
	}

	r.mu.RLock()
	data, ok := r.cache[family]
	miss, missed := r.misses[family]
	r.mu.RUnlock()
	if ok {
		return data, nil
	}
	if missed && r.now().Before(miss.until) {
		return nil, miss.err
	}

	data, err := r.fetch(ctx, family)
	if err != nil {
		// Cancelled callers do not poison the cache.
		if ctx.Err() == nil && r.MissTTL > 0 {
			r.mu.Lock()
			r.misses[family] = fontMiss{err: err, until: r.now().Add(r.MissTTL)}
			r.mu.Unlock()
		}
		return nil, err
	}

	r.mu.Lock()
	r.cache[family] = data
	delete(r.misses, family)
	r.mu.Unlock()
	return data, nil
}

func (r *RemoteSource) fetch(ctx context.Context, family string) ([]byte, error) {
	endpoint := fmt.Sprintf(r.urlTemplate, url.PathEscape(family))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching font: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrFontNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("font server returned status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFontBytes))
	if err != nil {
		return nil, fmt.Errorf("reading font: %w", err)
	}
	return data, nil
}

// FontResolver tries font sources in order and always yields a font: when
// every source fails it returns the default Go Regular face.
type FontResolver struct {
	sources []FontSource
	names   []string
	def     *opentype.Font
}

// NewFontResolver creates a resolver from an ordered list of sources and their names.
func NewFontResolver(sources []FontSource, names []string) *FontResolver {
	def, err := opentype.Parse(goregular.TTF)
	if err != nil {
		// goregular is compiled in; a parse failure is a build defect.
		panic(fmt.Sprintf("sigpayload: parsing default font: %v", err))
	}
	return &FontResolver{sources: sources, names: names, def: def}
}

// Default returns the default font.
func (r *FontResolver) Default() *opentype.Font {
	return r.def
}

// Resolve returns the font for family. Failures are logged and never returned.
func (r *FontResolver) Resolve(ctx context.Context, family string) *opentype.Font {
	family = strings.TrimSpace(family)
	if family == "" {
		return r.def
	}
	for i, src := range r.sources {
		data, err := src.Load(ctx, family)
		if err != nil {
			if !errors.Is(err, ErrFontNotFound) {
				log.Printf("sigpayload.FontResolver: %s failed for %q: %v", r.name(i), family, err)
			}
			continue
		}
		f, err := opentype.Parse(data)
		if err != nil {
			log.Printf("sigpayload.FontResolver: %s returned an unparsable font for %q: %v", r.name(i), family, err)
			continue
		}
		return f
	}
	log.Printf("sigpayload.FontResolver: no source has %q, using default font", family)
	return r.def
}

func (r *FontResolver) name(i int) string {
	if i < len(r.names) {
		return r.names[i]
	}
	return fmt.Sprintf("source %d", i)
}
