package massfunc_test

import (
	"context"
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/san-kum/mgsim/internal/massfunc"
	"github.com/san-kum/mgsim/internal/variance"
)

type fixedDeltaC struct {
	value float64
	err   error
	calls int
}

func (f *fixedDeltaC) DeltaC(context.Context, float64) (float64, error) {
	f.calls++
	return f.value, f.err
}

func testSpectrum() variance.Spectrum {
	k := floats.LogSpan(make([]float64, 1001), 1e-4, 1e3)
	p := make([]float64, len(k))
	for i := range k {
		p[i] = 2e4 * k[i] / (1 + math.Pow(k[i]/0.02, 3))
	}
	s, err := variance.NewSpectrum(k, p)
	Expect(err).NotTo(HaveOccurred())
	return s
}

const rhoM = 8.6e10

var _ = Describe("FirstCrossing", func() {
	It("is normalised: the integral over ln nu is two", func() {
		lnNu := floats.Span(make([]float64, 20001), math.Log(1e-20), math.Log(200))
		f := make([]float64, len(lnNu))
		for i, x := range lnNu {
			f[i] = massfunc.FirstCrossing(math.Exp(x))
		}
		Expect(integrate.Simpsons(lnNu, f)).To(BeNumerically("~", 2.0002, 2e-3))
	})

	It("is positive and vanishes for rare peaks", func() {
		Expect(massfunc.FirstCrossing(1)).To(BeNumerically(">", 0))
		Expect(massfunc.FirstCrossing(2000)).To(BeNumerically("<", 1e-200))
	})
})

var _ = Describe("FromTable", func() {
	var (
		masses []float64
		tab    *variance.Table
	)

	BeforeEach(func() {
		masses = floats.LogSpan(make([]float64, 24), 1e8, 1e15)
		var err error
		tab, err = variance.NewTable(context.Background(), testSpectrum(), rhoM, masses, 0)
		Expect(err).NotTo(HaveOccurred())
	})

	It("produces a positive abundance that falls with mass", func() {
		dndm, err := massfunc.FromTable(tab, rhoM, 1.686)
		Expect(err).NotTo(HaveOccurred())
		Expect(dndm).To(HaveLen(len(masses)))
		for i := range dndm {
			Expect(dndm[i]).To(BeNumerically(">", 0))
			if i > 0 {
				Expect(dndm[i]).To(BeNumerically("<", dndm[i-1]))
			}
		}
	})

	It("suppresses massive haloes when delta_c grows", func() {
		low, err := massfunc.FromTable(tab, rhoM, 3)
		Expect(err).NotTo(HaveOccurred())
		high, err := massfunc.FromTable(tab, rhoM, 6)
		Expect(err).NotTo(HaveOccurred())
		last := len(masses) - 1
		Expect(high[last]).To(BeNumerically("<", low[last]))
	})

	It("reports a negative entry with its mass index instead of clipping", func() {
		tab.DSigmaDM[5] = -tab.DSigmaDM[5]
		_, err := massfunc.FromTable(tab, rhoM, 1.686)
		Expect(err).To(MatchError(massfunc.ErrNumericalFault))

		var fault *massfunc.FaultError
		Expect(errors.As(err, &fault)).To(BeTrue())
		Expect(fault.Index).To(Equal(5))
		Expect(fault.Mass).To(Equal(masses[5]))
	})

	It("reports a non-finite entry", func() {
		tab.Sigma[2] = 0
		_, err := massfunc.FromTable(tab, rhoM, 1.686)
		Expect(err).To(MatchError(massfunc.ErrNumericalFault))
	})

	It("converts to dn/dlnM", func() {
		dndm, err := massfunc.FromTable(tab, rhoM, 1.686)
		Expect(err).NotTo(HaveOccurred())
		perLn := massfunc.DnDlnM(masses, dndm)
		Expect(perLn[3]).To(Equal(masses[3] * dndm[3]))
	})
})

var _ = Describe("STMassFunction", func() {
	masses := floats.LogSpan(make([]float64, 12), 1e9, 1e14)

	It("computes delta_c once and matches FromTable", func() {
		dc := &fixedDeltaC{value: 1.686}
		got, err := massfunc.STMassFunction(context.Background(), dc, testSpectrum(), rhoM, masses, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(dc.calls).To(Equal(1))

		tab, err := variance.NewTable(context.Background(), testSpectrum(), rhoM, masses, 1)
		Expect(err).NotTo(HaveOccurred())
		want, err := massfunc.FromTable(tab, rhoM, 1.686)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
	})

	It("propagates a delta_c failure", func() {
		boom := errors.New("scan failed")
		_, err := massfunc.STMassFunction(context.Background(), &fixedDeltaC{err: boom}, testSpectrum(), rhoM, masses, 1)
		Expect(err).To(MatchError(boom))
	})
})

var _ = Describe("NumberDensityAbove", func() {
	It("decreases with the mass cut and matches the full integral at the grid start", func() {
		masses := floats.LogSpan(make([]float64, 41), 1e8, 1e16)
		dndm := make([]float64, len(masses))
		for i, m := range masses {
			dndm[i] = math.Pow(m, -2)
		}

		full, err := massfunc.NumberDensityAbove(masses, dndm, 1e8)
		Expect(err).NotTo(HaveOccurred())
		Expect(full).To(BeNumerically("~", 1e-8-1e-16, 1e-11))

		mid, err := massfunc.NumberDensityAbove(masses, dndm, 3e10)
		Expect(err).NotTo(HaveOccurred())
		Expect(mid).To(BeNumerically("<", full))
		Expect(mid).To(BeNumerically("~", 1/3e10, 1e-3/3e10))

		none, err := massfunc.NumberDensityAbove(masses, dndm, 1e17)
		Expect(err).NotTo(HaveOccurred())
		Expect(none).To(BeZero())
	})

	It("rejects mismatched grids", func() {
		_, err := massfunc.NumberDensityAbove([]float64{1, 2}, []float64{1}, 1)
		Expect(err).To(MatchError(massfunc.ErrNumericalFault))
	})
})
