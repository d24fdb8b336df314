package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"sync"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/wav"
	"golang.org/x/sync/singleflight"

	"github.com/teslashibe/go-cubism/internal/log"
	"github.com/teslashibe/go-cubism/pkg/assets"
	"github.com/teslashibe/go-cubism/pkg/motion"
)

const resampleQuality = 4

var _ motion.SoundFactory = (*Library)(nil)

// Decode reads a wav or mp3 file and returns it as an in-memory buffer at
// the given sample rate.
func Decode(name string, data []byte, rate beep.SampleRate) (*beep.Buffer, error) {
	var (
		stream beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch strings.ToLower(path.Ext(name)) {
	case ".wav":
		stream, format, err = wav.Decode(bytes.NewReader(data))
	case ".mp3":
		stream, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, name)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	defer stream.Close()

	var src beep.Streamer = stream
	if format.SampleRate != rate {
		src = beep.Resample(resampleQuality, format.SampleRate, rate, stream)
	}

	buf := beep.NewBuffer(beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2})
	buf.Append(src)
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return buf, nil
}

// LibraryOption configures a Library.
type LibraryOption func(*Library)

// WithLibraryLogger sets the logger.
func WithLibraryLogger(l *slog.Logger) LibraryOption {
	return func(lib *Library) { lib.logger = l }
}

// WithVolume sets the default volume of created sounds.
func WithVolume(v float64) LibraryOption {
	return func(lib *Library) { lib.volume = v }
}

// WithTapSize sets how many samples each sound keeps for lip sync.
func WithTapSize(n int) LibraryOption {
	return func(lib *Library) { lib.tapSize = n }
}

// Library creates sounds from assets and caches decoded buffers.
type Library struct {
	logger  *slog.Logger
	fetcher assets.Fetcher
	out     Output
	volume  float64
	tapSize int

	mu     sync.Mutex
	cache  map[string]*beep.Buffer
	flight singleflight.Group
}

// NewLibrary creates a Library reading from f and playing on out.
func NewLibrary(f assets.Fetcher, out Output, opts ...LibraryOption) *Library {
	l := &Library{
		fetcher: f,
		out:     out,
		volume:  1,
		tapSize: 2048,
		cache:   make(map[string]*beep.Buffer),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = log.Or(l.logger).With("component", "audio")
	return l
}

// NewSound implements motion.SoundFactory.
func (l *Library) NewSound(ctx context.Context, asset string) (motion.Sound, error) {
	s, err := l.Load(ctx, asset)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Load returns a fresh Sound for asset.
func (l *Library) Load(ctx context.Context, asset string) (*Sound, error) {
	buf, err := l.buffer(ctx, asset)
	if err != nil {
		return nil, err
	}
	s := NewSound(asset, buf, l.out, l.tapSize)
	if l.volume != 1 {
		s.SetVolume(l.volume)
	}
	return s, nil
}

func (l *Library) buffer(ctx context.Context, asset string) (*beep.Buffer, error) {
	l.mu.Lock()
	buf, ok := l.cache[asset]
	l.mu.Unlock()
	if ok {
		return buf, nil
	}

	v, err, _ := l.flight.Do(asset, func() (any, error) {
		data, err := l.fetcher.Fetch(ctx, asset)
		if err != nil {
			return nil, fmt.Errorf("fetch %s: %w", asset, err)
		}
		buf, err := Decode(asset, data, l.out.SampleRate())
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.cache[asset] = buf
		l.mu.Unlock()
		l.logger.Debug("sound decoded", "asset", asset, "samples", buf.Len())
		return buf, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*beep.Buffer), nil
}

// Evict drops a cached buffer.
func (l *Library) Evict(asset string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.cache, asset)
}
