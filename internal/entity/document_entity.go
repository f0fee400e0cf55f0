package entity

// BoundingBox holds PDF coordinates for a word or clause.
type BoundingBox struct {
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
	X2 float64 `json:"x2"`
	Y2 float64 `json:"y2"`
}

// Union expands the box to cover other. A zero-value receiver adopts other.
func (b BoundingBox) Union(other BoundingBox) BoundingBox {
	if b == (BoundingBox{}) {
		return other
	}
	if other.X1 < b.X1 {
		b.X1 = other.X1
	}
	if other.Y1 < b.Y1 {
		b.Y1 = other.Y1
	}
	if other.X2 > b.X2 {
		b.X2 = other.X2
	}
	if other.Y2 > b.Y2 {
		b.Y2 = other.Y2
	}
	return b
}

type Word struct {
	Text       string      `json:"text"`
	BBox       BoundingBox `json:"bbox"`
	PageNumber int         `json:"page"`
}

type Page struct {
	PageNumber int    `json:"page_number"`
	Text       string `json:"text"`
	Words      []Word `json:"words"`
}

type ExtractionMetadata struct {
	PageCount       int    `json:"page_count"`
	WordCount       int    `json:"word_count"`
	HasScannedPages bool   `json:"has_scanned_pages"`
	Method          string `json:"extraction_method"`
}

type Extraction struct {
	FullText string             `json:"full_text"`
	Pages    []Page             `json:"pages"`
	Metadata ExtractionMetadata `json:"metadata"`
}
