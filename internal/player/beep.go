package player

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/desertthunder/stemx/internal/models"
	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/speaker"
	"github.com/faiface/beep/wav"
)

const resampleQuality = 4

var errUnsupportedFormat = errors.New("unsupported audio format")

// Mixer plays streamers and serializes access to them.
type Mixer interface {
	Play(s ...beep.Streamer)
	Lock()
	Unlock()
}

type speakerMixer struct{}

func (speakerMixer) Play(s ...beep.Streamer) { speaker.Play(s...) }
func (speakerMixer) Lock()                   { speaker.Lock() }
func (speakerMixer) Unlock()                 { speaker.Unlock() }

var (
	speakerOnce sync.Once
	speakerErr  error
)

// InitSpeaker initializes the audio device once per process.
func InitSpeaker(rate int, buffer time.Duration) (beep.SampleRate, error) {
	sr := beep.SampleRate(rate)
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sr, sr.N(buffer))
	})
	return sr, speakerErr
}

// SpeakerMixer returns the mixer backed by the process-wide speaker.
func SpeakerMixer() Mixer { return speakerMixer{} }

// Resolver turns a stem URL into a local audio file.
type Resolver interface {
	Resolve(ctx context.Context, kind models.Kind, url string) (string, error)
}

// BeepOpener decodes stems from local files and plays them through a [Mixer].
type BeepOpener struct {
	resolver Resolver
	mixer    Mixer
	rate     beep.SampleRate
}

func NewBeepOpener(resolver Resolver, mixer Mixer, rate beep.SampleRate) *BeepOpener {
	return &BeepOpener{resolver: resolver, mixer: mixer, rate: rate}
}

func (o *BeepOpener) Open(ctx context.Context, kind models.Kind, url string, onEnd func()) (Handle, error) {
	path, err := o.resolver.Resolve(ctx, kind, url)
	if err != nil {
		return nil, err
	}

	stream, format, err := decodeFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return newBeepHandle(stream, format, o.rate, o.mixer, onEnd), nil
}

func decodeFile(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".mp3":
		stream, format, err = mp3.Decode(f)
	default:
		err = errUnsupportedFormat
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}
	return stream, format, nil
}

type beepHandle struct {
	mixer  Mixer
	stream beep.StreamSeekCloser
	format beep.Format
	ctrl   *beep.Ctrl
	gain   *effects.Volume
	out    beep.Streamer
	level  float64

	attached atomic.Bool
	closed   atomic.Bool
	onEnd    func()
}

func newBeepHandle(stream beep.StreamSeekCloser, format beep.Format, rate beep.SampleRate, mixer Mixer, onEnd func()) *beepHandle {
	ctrl := &beep.Ctrl{Streamer: stream, Paused: true}
	gain := &effects.Volume{Streamer: ctrl, Base: 2}

	var out beep.Streamer = gain
	if rate != 0 && format.SampleRate != rate {
		out = beep.Resample(resampleQuality, format.SampleRate, rate, gain)
	}

	return &beepHandle{
		mixer:  mixer,
		stream: stream,
		format: format,
		ctrl:   ctrl,
		gain:   gain,
		out:    out,
		level:  1,
		onEnd:  onEnd,
	}
}

func (h *beepHandle) Play() error {
	if h.closed.Load() {
		return ErrSessionClosed
	}

	h.mixer.Lock()
	h.ctrl.Paused = false
	h.mixer.Unlock()

	if h.attached.CompareAndSwap(false, true) {
		h.mixer.Play(beep.Seq(h.out, beep.Callback(h.finish)))
	}
	return nil
}

// finish runs on the mixer goroutine with the mixer lock held.
func (h *beepHandle) finish() {
	h.attached.Store(false)
	if h.closed.Load() || h.onEnd == nil {
		return
	}
	go h.onEnd()
}

func (h *beepHandle) Pause() error {
	h.mixer.Lock()
	defer h.mixer.Unlock()
	h.ctrl.Paused = true
	return nil
}

func (h *beepHandle) Seek(pos time.Duration) error {
	h.mixer.Lock()
	defer h.mixer.Unlock()

	n := h.format.SampleRate.N(pos)
	if n < 0 {
		n = 0
	}
	if l := h.stream.Len(); n > l {
		n = l
	}
	return h.stream.Seek(n)
}

func (h *beepHandle) Position() time.Duration {
	h.mixer.Lock()
	defer h.mixer.Unlock()
	return h.format.SampleRate.D(h.stream.Position())
}

func (h *beepHandle) SetVolume(level float64) error {
	h.mixer.Lock()
	defer h.mixer.Unlock()

	h.level = clamp(level)
	h.gain.Silent = h.level == 0
	if !h.gain.Silent {
		h.gain.Volume = math.Log2(h.level)
	}
	return nil
}

func (h *beepHandle) Volume() float64 {
	h.mixer.Lock()
	defer h.mixer.Unlock()
	return h.level
}

func (h *beepHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return nil
	}

	h.mixer.Lock()
	h.ctrl.Streamer = nil
	h.mixer.Unlock()

	return h.stream.Close()
}
