package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/wenlng/go-captcha/v2/rotate"
	xdraw "golang.org/x/image/draw"
)

// CaptchaService issues rotate captchas once a login email has collected
// enough failures, and verifies the angle the client submits.
//
// Challenges live in the SecureStore under "captcha:<id>" so every
// instance behind the load balancer can verify them. A challenge is
// consumed by the first verification attempt, successful or not.
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) (bool, error)
}

type RotateChallenge struct {
	ID                string    `json:"id"`
	MasterImageBase64 string    `json:"master_image"`
	ThumbImageBase64  string    `json:"thumb_image"`
	ExpiresAt         time.Time `json:"expires_at"`
}

var ErrCaptchaUnavailable = errors.New("captcha generation failed")

type captchaServiceImpl struct {
	rotator rotate.Captcha
	store   *SecureStore
	ttl     time.Duration
	padding int // tolerance for angle validation
}

// NewCaptchaServiceRotate constructs a CaptchaService using rotate mode.
// padding is the accepted angle difference in degrees.
func NewCaptchaServiceRotate(store *SecureStore, ttl time.Duration, padding int, imgSizePx int) CaptchaService {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(generateRotateBackgrounds(3, imgSizePx)),
	)

	return &captchaServiceImpl{
		rotator: builder.Make(),
		store:   store,
		ttl:     ttl,
		padding: padding,
	}
}

func captchaKey(id string) string {
	return "captcha:" + id
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, errors.Join(ErrCaptchaUnavailable, err)
	}

	block := captData.GetData()
	if block == nil {
		return nil, ErrCaptchaUnavailable
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, errors.Join(ErrCaptchaUnavailable, err)
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, errors.Join(ErrCaptchaUnavailable, err)
	}

	challengeID := uuid.NewString()
	expiresAt := time.Now().Add(s.ttl)
	if err := s.store.SetItem(ctx, captchaKey(challengeID), block.Angle, SetOptions{Encrypt: true, Expiry: &expiresAt}); err != nil {
		return nil, err
	}

	return &RotateChallenge{
		ID:                challengeID,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
		ExpiresAt:         expiresAt.UTC(),
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) (bool, error) {
	if challengeID == "" {
		return false, nil
	}

	var target int
	ok, err := s.store.GetItem(ctx, captchaKey(challengeID), &target)
	if err != nil || !ok {
		return false, err
	}

	// consume on success or failure
	if err := s.store.RemoveItem(ctx, captchaKey(challengeID)); err != nil {
		return false, err
	}

	return rotate.Validate(int(math.Round(userAngle)), target, s.padding), nil
}

func generateRotateBackgrounds(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}
	imgs := make([]image.Image, 0, n)
	for range n {
		imgs = append(imgs, newNoiseGradientImage(size, size))
	}
	return imgs
}

// newNoiseGradientImage paints a coarse noisy gradient and scales it up so the
// noise reads as soft blotches rather than pixel static
func newNoiseGradientImage(w, h int) image.Image {
	sw, sh := max(w/4, 1), max(h/4, 1)
	small := image.NewRGBA(image.Rect(0, 0, sw, sh))
	half := float64(sw) / 2
	for y := range sh {
		for x := range sw {
			dist := math.Hypot(float64(x)-half, float64(y)-float64(sh)/2)
			t := math.Min(dist/half, 1)
			base := uint8(190 - int(140*t))
			noise := uint8(rand.Intn(24))
			small.Set(x, y, color.RGBA{R: base, G: base + noise/2, B: 255 - base/3, A: 255})
		}
	}

	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(rgba, rgba.Bounds(), small, small.Bounds(), xdraw.Src, nil)
	fillRect(rgba, image.Rect(w/8, h/8, w/2, h/5), color.RGBA{R: 255, G: 255, B: 255, A: 40})
	fillRect(rgba, image.Rect(w/2, h/2, w-w/8, h/2+h/10), color.RGBA{A: 28})
	return rgba
}

func fillRect(dst *image.RGBA, rect image.Rectangle, c color.RGBA) {
	draw.Draw(dst, rect, &image.Uniform{C: c}, image.Point{}, draw.Over)
}
