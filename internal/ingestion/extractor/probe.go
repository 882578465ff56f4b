package extractor

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFProbe is a structural look at a PDF, used to explain why no text came out.
type PDFProbe struct {
	Pages     int
	Encrypted bool
	HasImages bool
}

type Prober interface {
	Probe(data []byte) (PDFProbe, error)
}

// PDFCPUProber validates the file with pdfcpu and looks for image XObjects.
type PDFCPUProber struct{}

func (PDFCPUProber) Probe(data []byte) (res PDFProbe, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res = PDFProbe{}
			err = fmt.Errorf("pdfcpu panic: %v", rec)
		}
	}()

	conf := model.NewDefaultConfiguration()
	ctx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "password") || strings.Contains(msg, "encrypt") {
			return PDFProbe{Encrypted: true}, nil
		}
		return PDFProbe{}, fmt.Errorf("pdfcpu read: %w", err)
	}

	res.Pages = ctx.PageCount
	if ctx.Optimize != nil {
		for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
			if len(pdfcpu.ImageObjNrs(ctx, pageNr)) > 0 {
				res.HasImages = true
				break
			}
		}
	}
	return res, nil
}
