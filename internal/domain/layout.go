package domain

// BoundingBox is normalized to the page (0..1) with Top growing downwards.
type BoundingBox struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

func (b BoundingBox) CenterX() float64 { return b.Left + b.Width/2 }

type TextBlock struct {
	Text        string      `json:"text"`
	BoundingBox BoundingBox `json:"boundingBox"`
	Page        int         `json:"page"`
}

type AlignedRow struct {
	Left  string `json:"left"`
	Right string `json:"right"`
}

type ColumnSplit struct {
	LeftBlocks  []TextBlock  `json:"leftBlocks"`
	RightBlocks []TextBlock  `json:"rightBlocks"`
	IsTwoColumn bool         `json:"isTwoColumn"`
	IsBilingual bool         `json:"isBilingual"`
	Alignment   []AlignedRow `json:"alignment,omitempty"`
}

// Detection is a flat list of positioned lines returned by remote text detection.
type Detection struct {
	Pages  int         `json:"pages"`
	Blocks []TextBlock `json:"blocks"`
}
