package winner_card

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"time"

	logging "clutch-protocol/internal/infra/log"

	"github.com/fogleman/gg"
	"go.uber.org/zap"
)

const (
	cardWidth  = 1200
	cardHeight = 630

	titleY      = 140.0
	addressY    = 300.0
	amountY     = 420.0
	footerY     = 560.0
	titleSize   = 64.0
	addressSize = 40.0
	amountSize  = 56.0
	footerSize  = 28.0
)

var fontPaths = []string{
	"etc/fonts/InterVariable.ttf",
	"etc/fonts/Inter-Regular.ttf",
	"/usr/share/fonts/truetype/dejavu/DejaVuSans.ttf",
	"/usr/share/fonts/truetype/liberation/LiberationSans-Regular.ttf",
	"/System/Library/Fonts/Supplemental/Arial.ttf",
}

// Card holds the values rendered onto the winner announcement image.
type Card struct {
	Winner    string
	AmountSOL float64
	TokenName string
}

// Generate renders the winner card PNG into etc/cards and returns its path.
func Generate(card Card) (string, error) {
	dc := gg.NewContext(cardWidth, cardHeight)

	dc.SetColor(color.RGBA{12, 14, 26, 255})
	dc.Clear()

	loadedFontPath := ""
	for _, p := range fontPaths {
		if _, err := os.Stat(p); err == nil {
			if err := dc.LoadFontFace(p, titleSize); err == nil {
				loadedFontPath = p
				break
			}
		}
	}
	if loadedFontPath == "" {
		logging.LogWarn("No font found for winner card, using default face",
			zap.Int("paths_checked", len(fontPaths)))
	}

	setFace := func(size float64) {
		if loadedFontPath != "" {
			dc.LoadFontFace(loadedFontPath, size)
		}
	}

	centered := func(text string, y float64) {
		w, _ := dc.MeasureString(text)
		dc.DrawString(text, (cardWidth-w)/2, y)
	}

	setFace(titleSize)
	dc.SetColor(color.White)
	title := "WINNER"
	if card.TokenName != "" {
		title = card.TokenName + " WINNER"
	}
	centered(title, titleY)

	setFace(addressSize)
	dc.SetColor(color.RGBA{160, 170, 200, 255})
	centered(shortAddress(card.Winner), addressY)

	setFace(amountSize)
	dc.SetColor(color.RGBA{0, 220, 120, 255})
	centered(fmt.Sprintf("+%.4f SOL", card.AmountSOL), amountY)

	setFace(footerSize)
	dc.SetColor(color.RGBA{120, 120, 140, 255})
	centered(time.Now().UTC().Format("2006-01-02 15:04 UTC"), footerY)

	cardsDir := filepath.Join("etc", "cards")
	if err := os.MkdirAll(cardsDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create cards directory: %w", err)
	}

	filename := filepath.Join(cardsDir, "winner_card.png")
	if err := dc.SavePNG(filename); err != nil {
		return "", fmt.Errorf("failed to save winner card: %w", err)
	}

	info, err := os.Stat(filename)
	if err != nil {
		return "", fmt.Errorf("failed to stat winner card: %w", err)
	}
	if info.Size() == 0 {
		os.Remove(filename)
		return "", fmt.Errorf("winner card file is empty after rendering")
	}

	logging.LogInfo("Winner card generated",
		zap.String("filename", filename),
		zap.Int64("fileSize", info.Size()))
	return filename, nil
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-6:]
}
