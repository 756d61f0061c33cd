package decoder

import (
	"errors"
	"testing"

	"invoice-scan-service/internal/raster"
	"invoice-scan-service/internal/testutil"
)

const fixtureContent = "https://pay.example.test/invoice/8421"

func qrRaster(t *testing.T, content string) *raster.GrayRaster {
	t.Helper()
	img, err := testutil.QRGray(content, 8)
	if err != nil {
		t.Fatalf("render fixture: %v", err)
	}
	return raster.FromImage(img)
}

func blankRaster(w, h int) *raster.GrayRaster {
	r := &raster.GrayRaster{Width: w, Height: h, Pix: make([]byte, w*h)}
	for i := range r.Pix {
		r.Pix[i] = 255
	}
	return r
}

func TestDefaultAdapters_Order(t *testing.T) {
	adapters := DefaultAdapters()
	want := []string{"goqr", "gozxing", "zxing-multi"}
	if len(adapters) != len(want) {
		t.Fatalf("adapter count = %d, want %d", len(adapters), len(want))
	}
	for i, name := range want {
		if adapters[i].Name() != name {
			t.Errorf("adapter %d = %q, want %q", i, adapters[i].Name(), name)
		}
	}
}

func TestAdapters_DecodeCleanQR(t *testing.T) {
	ras := qrRaster(t, fixtureContent)

	for _, adapter := range DefaultAdapters() {
		t.Run(adapter.Name(), func(t *testing.T) {
			outcome := adapter.Decode(ras)
			if outcome.Status != Decoded {
				t.Fatalf("status = %s, want decoded (err: %v)", outcome.Status, outcome.Err)
			}
			if outcome.Content != fixtureContent {
				t.Fatalf("content = %q, want %q", outcome.Content, fixtureContent)
			}
		})
	}
}

func TestAdapters_NoCodeOnBlankRaster(t *testing.T) {
	ras := blankRaster(200, 200)

	for _, adapter := range DefaultAdapters() {
		t.Run(adapter.Name(), func(t *testing.T) {
			outcome := adapter.Decode(ras)
			if outcome.Status != NoCode {
				t.Fatalf("status = %s, want no_code (content: %q, err: %v)",
					outcome.Status, outcome.Content, outcome.Err)
			}
		})
	}
}

func TestGuard_RecoversPanic(t *testing.T) {
	outcome := guard(func() Outcome {
		panic("native engine blew up")
	})
	if outcome.Status != Fault {
		t.Fatalf("status = %s, want fault", outcome.Status)
	}
	if outcome.Err == nil {
		t.Fatal("expected a wrapped panic error")
	}
}

func TestGuard_PassesThroughCleanOutcome(t *testing.T) {
	want := Outcome{Status: Decoded, Content: "ok"}
	if got := guard(func() Outcome { return want }); got != want {
		t.Fatalf("guard() = %+v, want %+v", got, want)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		Decoded:    "decoded",
		NoCode:     "no_code",
		Fault:      "fault",
		Status(42): "unknown",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Errorf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}

// faultyAdapter lets the tests drive the fault path without a real engine.
type faultyAdapter struct{}

func (faultyAdapter) Name() string { return "faulty" }
func (faultyAdapter) Decode(*raster.GrayRaster) Outcome {
	return guard(func() Outcome { panic(errors.New("boom")) })
}

func TestFaultyAdapter_DoesNotPropagate(t *testing.T) {
	outcome := faultyAdapter{}.Decode(blankRaster(4, 4))
	if outcome.Status != Fault {
		t.Fatalf("status = %s, want fault", outcome.Status)
	}
}
