package collapse_test

import (
	"context"
	"math"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/mgsim/internal/collapse"
	"github.com/san-kum/mgsim/internal/cosmo"
	"github.com/san-kum/mgsim/internal/dynamo"
)

// testConfig keeps scans short: a coarse reporting step and a sample
// range bracketing collapse around a ~ 1.
func testConfig() collapse.Config {
	cfg := collapse.DefaultConfig()
	cfg.Dt = 1e-3
	cfg.Samples = 40
	cfg.DeltaMin = 2e-5
	cfg.DeltaMax = 1e-2
	return cfg
}

func newSolver(spec cosmo.ModelSpec, cfg collapse.Config, opts ...collapse.Option) *collapse.Solver {
	bg, err := cosmo.NewBackground(cosmo.Planck18(), spec)
	Expect(err).NotTo(HaveOccurred())
	s, err := collapse.New(bg, cfg, opts...)
	Expect(err).NotTo(HaveOccurred())
	return s
}

var _ = Describe("Collapse", func() {
	var (
		ctx    context.Context
		solver *collapse.Solver
	)

	BeforeEach(func() {
		ctx = context.Background()
		solver = newSolver(cosmo.LCDM(), testConfig())
	})

	It("collapses larger overdensities earlier", func() {
		small, err := solver.Collapse(ctx, 1e-3)
		Expect(err).NotTo(HaveOccurred())
		large, err := solver.Collapse(ctx, 3e-3)
		Expect(err).NotTo(HaveOccurred())

		Expect(small.Collapsed).To(BeTrue())
		Expect(large.Collapsed).To(BeTrue())
		Expect(large.A).To(BeNumerically("<", small.A))
		Expect(small.Delta).To(BeNumerically(">=", 1e7))
	})

	It("reports an overdensity already past the threshold at a_init", func() {
		ev, err := solver.Collapse(ctx, 2e7)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(Equal(collapse.Event{A: collapse.DefaultAInit, Delta: 2e7, Collapsed: true}))
	})

	It("returns the zero event when nothing collapses before the ceiling", func() {
		ev, err := solver.Collapse(ctx, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev).To(Equal(collapse.Event{}))
	})

	It("rejects negative or non-finite initial overdensities", func() {
		_, err := solver.Collapse(ctx, -1e-3)
		Expect(err).To(MatchError(collapse.ErrInvalidInput))
		_, err = solver.Collapse(ctx, math.NaN())
		Expect(err).To(MatchError(collapse.ErrInvalidInput))
	})

	It("stops when the context is canceled", func() {
		canceled, cancel := context.WithCancel(ctx)
		cancel()
		_, err := solver.Collapse(canceled, 1e-3)
		Expect(err).To(MatchError(context.Canceled))
	})

	It("collapses sooner when gravity is enhanced", func() {
		enhanced := newSolver(cosmo.ModelSpec{
			Expansion: cosmo.ExpansionLCDM, Coupling: cosmo.CouplingE11, Par1: 0.5,
		}, testConfig())

		gr, err := solver.Collapse(ctx, 2e-4)
		Expect(err).NotTo(HaveOccurred())
		mg, err := enhanced.Collapse(ctx, 2e-4)
		Expect(err).NotTo(HaveOccurred())
		Expect(gr.Collapsed).To(BeTrue())
		Expect(mg.A).To(BeNumerically("<", gr.A))
	})
})

var _ = Describe("Inverse table", Ordered, func() {
	var (
		ctx    = context.Background()
		solver *collapse.Solver
		inv    *collapse.InverseTable
		calls  atomic.Int64
	)

	BeforeAll(func() {
		solver = newSolver(cosmo.LCDM(), testConfig(), collapse.WithProgress(func(done, total int) {
			calls.Add(1)
		}))
		var err error
		inv, err = solver.BuildInverse(ctx)
		Expect(err).NotTo(HaveOccurred())
	})

	It("reports progress once per sample", func() {
		Expect(calls.Load()).To(BeEquivalentTo(testConfig().Samples))
	})

	It("is monotone: later collapse needs a smaller initial overdensity", func() {
		ac, deltaI := inv.Points()
		Expect(len(ac)).To(BeNumerically(">=", 3))
		Expect(len(ac) + inv.Dropped()).To(Equal(testConfig().Samples))
		for i := 1; i < len(ac); i++ {
			Expect(ac[i]).To(BeNumerically(">", ac[i-1]))
			Expect(deltaI[i]).To(BeNumerically("<", deltaI[i-1]))
		}
	})

	It("inverts Collapse", func() {
		deltaI := 7.3e-4
		ev, err := solver.Collapse(ctx, deltaI)
		Expect(err).NotTo(HaveOccurred())
		Expect(ev.Collapsed).To(BeTrue())
		Expect(inv.InitialOverdensity(ev.A)).To(BeNumerically("~", deltaI, 1e-2*deltaI))
	})

	It("gives the LCDM critical overdensity today", func() {
		dc, err := solver.DeltaCFromInverse(ctx, inv, 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(dc).To(BeNumerically(">=", 1.6))
		Expect(dc).To(BeNumerically("<=", 1.75))
	})

	It("gives a nearly constant critical overdensity in the matter era", func() {
		today, err := solver.DeltaCFromInverse(ctx, inv, 1)
		Expect(err).NotTo(HaveOccurred())
		early, err := solver.DeltaCFromInverse(ctx, inv, 0.2)
		Expect(err).NotTo(HaveOccurred())
		Expect(early).To(BeNumerically("~", today, 0.05))
	})

	It("extrapolates linearly outside the sampled range", func() {
		lo, hi := inv.Range()
		ac, deltaI := inv.Points()
		n := len(ac)
		slope := (deltaI[n-1] - deltaI[n-2]) / (ac[n-1] - ac[n-2])
		Expect(inv.InitialOverdensity(hi + 0.1)).To(BeNumerically("~", deltaI[n-1]+0.1*slope, 1e-12))
		Expect(inv.InitialOverdensity(lo)).To(BeNumerically("~", deltaI[0], 1e-15))
	})
})

var _ = Describe("Modified gravity collapse", func() {
	DescribeTable("inverts collapse and gives a physical critical overdensity",
		func(spec cosmo.ModelSpec) {
			ctx := context.Background()
			solver := newSolver(spec, testConfig())
			inv, err := solver.BuildInverse(ctx)
			Expect(err).NotTo(HaveOccurred())

			_, hi := inv.Range()
			aStar := hi / 2
			deltaI, err := solver.InitialOverdensityFromInverse(ctx, inv, aStar)
			Expect(err).NotTo(HaveOccurred())
			Expect(deltaI).To(BeNumerically(">", 0))

			ev, err := solver.Collapse(ctx, deltaI)
			Expect(err).NotTo(HaveOccurred())
			Expect(ev.Collapsed).To(BeTrue())
			Expect(ev.A).To(BeNumerically("~", aStar, 2e-2*aStar))

			dc, err := solver.DeltaCFromInverse(ctx, inv, aStar)
			Expect(err).NotTo(HaveOccurred())
			Expect(math.IsInf(dc, 0) || math.IsNaN(dc)).To(BeFalse())
			Expect(dc).To(BeNumerically(">", 1.4))
			Expect(dc).To(BeNumerically("<", 2.0))
		},
		Entry("nDGP linear", cosmo.ModelSpec{
			Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 3000, Regime: cosmo.RegimeLinear,
		}),
		Entry("nDGP nonlinear", cosmo.ModelSpec{
			Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 3000, Regime: cosmo.RegimeNonlinear,
		}),
		Entry("wCDM", cosmo.ModelSpec{
			Expansion: cosmo.ExpansionWCDM, Coupling: cosmo.CouplingWCDM, Par1: -0.9, Par2: 0.55,
		}),
	)

	It("screens the nonlinear nDGP collapse", func() {
		ctx := context.Background()
		spec := cosmo.ModelSpec{Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 1000}

		spec.Regime = cosmo.RegimeLinear
		linear, err := newSolver(spec, testConfig()).Collapse(ctx, 3e-4)
		Expect(err).NotTo(HaveOccurred())
		spec.Regime = cosmo.RegimeNonlinear
		screened, err := newSolver(spec, testConfig()).Collapse(ctx, 3e-4)
		Expect(err).NotTo(HaveOccurred())
		gr, err := newSolver(cosmo.LCDM(), testConfig()).Collapse(ctx, 3e-4)
		Expect(err).NotTo(HaveOccurred())

		Expect(linear.Collapsed && screened.Collapsed && gr.Collapsed).To(BeTrue())
		Expect(linear.A).To(BeNumerically("<", screened.A))
		Expect(screened.A).To(BeNumerically("<=", gr.A))
	})

	It("refuses a collapse time the table cannot extrapolate to", func() {
		ctx := context.Background()
		cfg := testConfig()
		cfg.Samples = 12
		cfg.DeltaMin = 1e-4
		solver := newSolver(cosmo.ModelSpec{
			Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 1000, Regime: cosmo.RegimeLinear,
		}, cfg)
		inv, err := solver.BuildInverse(ctx)
		Expect(err).NotTo(HaveOccurred())
		_, hi := inv.Range()
		Expect(hi).To(BeNumerically("<", 0.9))

		_, err = solver.DeltaCFromInverse(ctx, inv, 1)
		Expect(err).To(MatchError(collapse.ErrOutsideTable))
		Expect(err).To(MatchError(collapse.ErrInvalidInput))
	})
})

var _ = Describe("Inverse table failures", func() {
	It("fails when fewer than three samples collapse", func() {
		cfg := testConfig()
		cfg.Samples = 3
		cfg.DeltaMin = 1e-9
		cfg.DeltaMax = 1e-8
		solver := newSolver(cosmo.LCDM(), cfg)

		_, err := solver.BuildInverse(context.Background())
		Expect(err).To(MatchError(dynamo.ErrIntegrationDivergence))
	})

	It("refuses an nDGP model without a regime", func() {
		bg, err := cosmo.NewBackground(cosmo.Planck18(), cosmo.ModelSpec{
			Expansion: cosmo.ExpansionNDGP, Coupling: cosmo.CouplingNDGP, Par1: 3000,
		})
		Expect(err).NotTo(HaveOccurred())
		_, err = collapse.New(bg, testConfig())
		Expect(err).To(MatchError(cosmo.ErrInvalidParameterCombination))
	})

	It("rejects an invalid configuration", func() {
		bg, err := cosmo.NewBackground(cosmo.Planck18(), cosmo.LCDM())
		Expect(err).NotTo(HaveOccurred())

		cfg := testConfig()
		cfg.DeltaMax = cfg.DeltaMin / 2
		_, err = collapse.New(bg, cfg)
		Expect(err).To(MatchError(collapse.ErrInvalidConfig))

		cfg = testConfig()
		cfg.Method = "leapfrog"
		_, err = collapse.New(bg, cfg)
		Expect(err).To(MatchError(collapse.ErrInvalidConfig))
	})
})

var _ = Describe("Linear growth", func() {
	var solver *collapse.Solver

	BeforeEach(func() {
		solver = newSolver(cosmo.LCDM(), testConfig())
	})

	It("samples every reporting step and ends exactly at the target", func() {
		traj, err := solver.Linear(context.Background(), 1e-4, 0.0105)
		Expect(err).NotTo(HaveOccurred())
		Expect(traj).To(HaveLen(11))
		Expect(traj[0].A).To(BeNumerically("~", collapse.DefaultAInit+1e-3, 1e-15))
		Expect(traj[len(traj)-1].A).To(Equal(0.0105))
		for i := 1; i < len(traj); i++ {
			Expect(traj[i].Delta).To(BeNumerically(">", traj[i-1].Delta))
		}
	})

	It("is linear in the initial overdensity", func() {
		one, err := solver.Linear(context.Background(), 1e-4, 0.5)
		Expect(err).NotTo(HaveOccurred())
		two, err := solver.Linear(context.Background(), 2e-4, 0.5)
		Expect(err).NotTo(HaveOccurred())
		last := len(one) - 1
		Expect(two[last].Delta).To(BeNumerically("~", 2*one[last].Delta, 1e-6*one[last].Delta))
	})

	It("normalises the growth factor to one today", func() {
		d1, err := solver.GrowthFactor(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(d1).To(BeNumerically("~", 1, 1e-12))

		half, err := solver.GrowthFactor(context.Background(), 0.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(half).To(BeNumerically(">", 0.55))
		Expect(half).To(BeNumerically("<", 0.68))
	})

	It("rejects a target before a_init", func() {
		_, err := solver.Linear(context.Background(), 1e-4, 1e-6)
		Expect(err).To(MatchError(collapse.ErrInvalidInput))
	})
})
