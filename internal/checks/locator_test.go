package checks

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/receiptworks/reconciler/internal/inference"
)

func regionPayload(items ...map[string]interface{}) inference.Payload {
	raw := make([]interface{}, len(items))
	for i, m := range items {
		raw[i] = m
	}
	return inference.Payload{"checks": raw}
}

func TestDecodeRegions(t *testing.T) {
	payload := regionPayload(map[string]interface{}{
		"x": 10.0, "y": 60.0, "w": 40.0, "h": 15.0,
		"check_number": "1042", "payee": "Acme Corp",
		"amount": 500.0, "date": "2025-03-02", "memo": "invoice 88",
	})

	regions, err := decodeRegions(payload)
	require.NoError(t, err)
	require.Len(t, regions, 1)

	r := regions[0]
	assert.Equal(t, "1042", r.CheckNumber)
	assert.Equal(t, "Acme Corp", r.Payee)
	assert.True(t, r.HasAmount)
	assert.Equal(t, "500", r.Amount.String())
	assert.True(t, r.HasDate)
	assert.Equal(t, 2, r.Date.Day())
}

func TestDecodeRegionsDropsBadGeometry(t *testing.T) {
	payload := regionPayload(
		map[string]interface{}{"x": 10.0, "y": 10.0, "w": 0.0, "h": 15.0},
		map[string]interface{}{"x": 80.0, "y": 10.0, "w": 30.0, "h": 15.0}, // runs off the page
		map[string]interface{}{"x": 5.0, "y": 5.0, "w": 50.0, "h": 20.0},
	)

	regions, err := decodeRegions(payload)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.Equal(t, 5.0, regions[0].X)
}

func TestDecodeRegionsEmptyPage(t *testing.T) {
	regions, err := decodeRegions(inference.Payload{"checks": []interface{}{}})
	require.NoError(t, err)
	assert.Empty(t, regions)
}

func TestDecodeRegionsToleratesMissingOptionalFields(t *testing.T) {
	payload := regionPayload(map[string]interface{}{
		"x": 0.0, "y": 0.0, "w": 100.0, "h": 50.0,
	})

	regions, err := decodeRegions(payload)
	require.NoError(t, err)
	require.Len(t, regions, 1)
	assert.False(t, regions[0].HasAmount)
	assert.False(t, regions[0].HasDate)
	assert.Empty(t, regions[0].CheckNumber)
}

func TestCropRect(t *testing.T) {
	bounds := image.Rect(0, 0, 1000, 2000)
	r := region{X: 10, Y: 50, W: 40, H: 25}

	rect := cropRect(bounds, r)

	assert.Equal(t, image.Rect(100, 1000, 500, 1500), rect)
}

func TestCropRegionProducesPNG(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 200, 100))
	data, err := cropRegion(img, region{X: 25, Y: 25, W: 50, H: 50})

	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}
