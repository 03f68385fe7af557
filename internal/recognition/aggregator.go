// Package recognition runs page recognition and merges per-page results
// into document-level text and confidence.
package recognition

import (
	"strings"

	"github.com/garyjia/invoice-booking/internal/domain/apperr"
	"github.com/garyjia/invoice-booking/internal/domain/entity"
)

// PageSeparator joins page texts in the aggregated document text
const PageSeparator = "\n\n"

// PageResult is the recognition output for one page
type PageResult struct {
	Text       string
	Confidence entity.PageConfidence
}

// Result is the aggregated recognition output for a whole document
type Result struct {
	Text       string
	Confidence entity.ConfidenceScores
}

// Aggregate merges page results given in page order. The overall score is
// the mean of the page scores; PerPage is keyed by zero-based page index.
// Token scores from earlier pages win when a token repeats.
func Aggregate(pages []PageResult) (*Result, error) {
	if len(pages) == 0 {
		return nil, apperr.New(apperr.InvalidInput, "aggregate confidence", "no pages to aggregate")
	}

	texts := make([]string, len(pages))
	perPage := make(map[int]entity.PageConfidence, len(pages))
	var perToken map[string]float64
	var sum float64

	for i, page := range pages {
		texts[i] = page.Text
		sum += page.Confidence.Overall

		block := entity.PageConfidence{Overall: page.Confidence.Overall}
		if len(page.Confidence.PerToken) > 0 {
			block.PerToken = make(map[string]float64, len(page.Confidence.PerToken))
			if perToken == nil {
				perToken = make(map[string]float64)
			}
			for tok, score := range page.Confidence.PerToken {
				block.PerToken[tok] = score
				if _, seen := perToken[tok]; !seen {
					perToken[tok] = score
				}
			}
		}
		perPage[i] = block
	}

	return &Result{
		Text: strings.Join(texts, PageSeparator),
		Confidence: entity.ConfidenceScores{
			Overall:  sum / float64(len(pages)),
			PerToken: perToken,
			PerPage:  perPage,
		},
	}, nil
}
