// Package checks locates embedded check images inside scanned bank
// statements, stores each crop as its own object, and links crops to the
// statement's extracted transactions.
package checks

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/receiptworks/reconciler/internal/domain"
	"github.com/receiptworks/reconciler/internal/inference"
	"github.com/receiptworks/reconciler/internal/logger"
	"github.com/receiptworks/reconciler/internal/objectstore"
)

const locatePrompt = `You are a document vision system. The image is one page of a scanned bank statement. Find every embedded check image on the page (front or back of a personal or business check).

Return ONLY a JSON object of the form:
{"checks": [{"x": <left edge as percent of page width>, "y": <top edge as percent of page height>, "w": <width percent>, "h": <height percent>, "check_number": "<string or empty>", "payee": "<string or empty>", "amount": <number or null>, "date": "<YYYY-MM-DD or empty>", "memo": "<string or empty>"}]}

If the page contains no check images return {"checks": []}. Percentages are in [0,100].`

// region is one model-reported check bounding box with the fields legible in
// the crop. Coordinates are percentages of the page dimensions.
type region struct {
	X, Y, W, H  float64
	CheckNumber string
	Payee       string
	Amount      decimal.Decimal
	HasAmount   bool
	Date        time.Time
	HasDate     bool
	Memo        string
}

// Locator finds check regions page by page and uploads each crop.
type Locator struct {
	infer inference.Client
	store objectstore.Store

	// window is the maximum date distance, in days, at which an amount
	// match still links a check to a transaction.
	window int
}

func NewLocator(client inference.Client, store objectstore.Store, windowDays int) *Locator {
	if windowDays <= 0 {
		windowDays = 3
	}
	return &Locator{infer: client, store: store, window: windowDays}
}

// Locate renders each PDF page, asks the model for check regions, crops and
// stores every region, and correlates the crops against txns. Crops that
// correlate to nothing are still returned, unlinked.
func (l *Locator) Locate(ctx context.Context, doc *domain.Document, pdf []byte, txns []*domain.ExtractedTransaction) ([]*domain.CheckImage, error) {
	log := logger.FromContext(ctx)

	fz, err := fitz.NewFromMemory(pdf)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer fz.Close()

	var found []*domain.CheckImage
	for page := 0; page < fz.NumPage(); page++ {
		img, err := fz.Image(page)
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", page, err)
		}
		regions, err := l.locateOnPage(ctx, img, log, page)
		if err != nil {
			return nil, err
		}
		for idx, reg := range regions {
			crop, err := cropRegion(img, reg)
			if err != nil {
				log.Warn().Int("page", page).Int("region", idx).Err(err).
					Msg("skipping unusable check region")
				continue
			}
			objectName := fmt.Sprintf("checks/%s/p%d-%d.png", doc.ID, page, idx)
			uri, err := l.store.Put(ctx, objectName, crop, "image/png")
			if err != nil {
				return nil, fmt.Errorf("store check crop: %w", err)
			}
			found = append(found, &domain.CheckImage{
				ID:          fmt.Sprintf("%s-p%d-%d", doc.ID, page, idx),
				DocumentID:  doc.ID,
				StorageURI:  uri,
				Page:        page,
				IndexOnPage: idx,
				CheckNumber: reg.CheckNumber,
				Payee:       reg.Payee,
				Amount:      reg.Amount,
				Date:        reg.Date,
				Memo:        reg.Memo,
			})
		}
	}

	Correlate(found, txns, l.window)
	log.Info().Int("checks", len(found)).Msg("check location complete")
	return found, nil
}

// locateOnPage runs the vision pass for a single rendered page.
func (l *Locator) locateOnPage(ctx context.Context, img image.Image, log zerolog.Logger, page int) ([]region, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page %d: %w", page, err)
	}

	resp, err := l.infer.Infer(ctx, inference.Request{
		Task:     "locate-checks",
		Prompt:   locatePrompt,
		Document: buf.Bytes(),
		MIMEType: "image/png",
	})
	if err != nil {
		return nil, fmt.Errorf("locate checks on page %d: %w", page, err)
	}

	payload, err := inference.ParsePayload(resp.Text)
	if err != nil {
		log.Warn().Int("page", page).Err(err).Msg("unparseable check location response")
		return nil, nil
	}
	return decodeRegions(payload)
}

// decodeRegions validates the model's region list. Regions with out-of-range
// geometry are dropped rather than clamped into nonsense crops.
func decodeRegions(payload inference.Payload) ([]region, error) {
	items, err := payload.Array("checks")
	if err != nil {
		return nil, nil
	}

	var out []region
	for _, p := range items {
		var r region
		r.CheckNumber, _ = p.OptionalString("check_number")
		r.Payee, _ = p.OptionalString("payee")
		r.Memo, _ = p.OptionalString("memo")

		geomOK := true
		for _, g := range []struct {
			key string
			dst *float64
		}{{"x", &r.X}, {"y", &r.Y}, {"w", &r.W}, {"h", &r.H}} {
			v, err := p.Number(g.key)
			if err != nil {
				geomOK = false
				break
			}
			*g.dst = v
		}
		if !geomOK || !geometryValid(r) {
			continue
		}
		if v, ok, err := p.OptionalNumber("amount"); err == nil && ok && v >= 0 {
			r.Amount = decimal.NewFromFloat(v)
			r.HasAmount = true
		}
		if s, err := p.OptionalString("date"); err == nil && s != "" {
			if d, err := time.Parse("2006-01-02", s); err == nil {
				r.Date = d
				r.HasDate = true
			}
		}
		out = append(out, r)
	}
	return out, nil
}

func geometryValid(r region) bool {
	if r.W <= 0 || r.H <= 0 {
		return false
	}
	if r.X < 0 || r.Y < 0 || r.X+r.W > 100 || r.Y+r.H > 100 {
		return false
	}
	return true
}

// cropRect converts percent coordinates into a pixel rectangle on the page.
func cropRect(bounds image.Rectangle, r region) image.Rectangle {
	w := float64(bounds.Dx())
	h := float64(bounds.Dy())
	return image.Rect(
		bounds.Min.X+int(r.X/100*w),
		bounds.Min.Y+int(r.Y/100*h),
		bounds.Min.X+int((r.X+r.W)/100*w),
		bounds.Min.Y+int((r.Y+r.H)/100*h),
	)
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

func cropRegion(img image.Image, r region) ([]byte, error) {
	si, ok := img.(subImager)
	if !ok {
		return nil, fmt.Errorf("page image %T does not support cropping", img)
	}
	rect := cropRect(img.Bounds(), r)
	if rect.Empty() {
		return nil, fmt.Errorf("region collapses to an empty rectangle")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, si.SubImage(rect)); err != nil {
		return nil, fmt.Errorf("encode crop: %w", err)
	}
	return buf.Bytes(), nil
}
