package reactor_test

import (
	"errors"
	"math"
	"math/rand"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/integrators"
	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/reactor"
)

// drainIntegrator empties the reactor while leaving the temperature alone.
type drainIntegrator struct{}

func (drainIntegrator) Step(_ dynamo.System, x dynamo.State, _ dynamo.Control, _, _ float64) dynamo.State {
	return dynamo.State{-0.5, x[1]}
}

type nanIntegrator struct{}

func (nanIntegrator) Step(_ dynamo.System, x dynamo.State, _ dynamo.Control, _, _ float64) dynamo.State {
	out := make(dynamo.State, len(x))
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func seeded(seed int64) reactor.RandSource {
	return rand.New(rand.NewSource(seed))
}

func configFor(mode reactor.Mode) reactor.EpisodeConfig {
	cfg := reactor.DefaultEpisodeConfig()
	cfg.Mode = mode
	return cfg
}

var _ = Describe("Episode", func() {
	var (
		ep   *reactor.Episode
		logs *observer.ObservedLogs
	)

	BeforeEach(func() {
		var core zapcore.Core
		core, logs = observer.New(zapcore.WarnLevel)

		var err error
		ep, err = reactor.New(reactor.WithRand(seeded(7)), reactor.WithLogger(zap.New(core)))
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("construction", func() {
		It("starts ready with the default transition episode", func() {
			Expect(ep.Phase()).To(Equal(reactor.PhaseReady))
			Expect(ep.Config()).To(Equal(reactor.DefaultEpisodeConfig()))
			Expect(ep.ID()).NotTo(BeEmpty())

			obs := ep.State()
			Expect(obs.Cr).To(Equal(reactor.LowSteadyConcentration))
			Expect(obs.Tr).To(Equal(reactor.LowSteadyTemperature))
			Expect(obs.Cref).To(Equal(8.57))
			Expect(obs.Tref).To(Equal(311.2612))
			Expect(obs.Tc).To(BeNumerically("~", 297.98, 0.01))
		})

		It("rejects invalid process constants", func() {
			c := physics.DefaultConstants()
			c.UA = -1
			_, err := reactor.New(reactor.WithConstants(c))
			Expect(err).To(MatchError(physics.ErrInvalidConstants))
		})
	})

	Describe("Reset", func() {
		It("starts mode 2 at the high-temperature steady state", func() {
			obs, err := ep.Reset(configFor(reactor.ModeHighSteady))
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.Cr).To(Equal(2.0))
			Expect(obs.Tr).To(Equal(373.1311))
			Expect(obs.Cref).To(Equal(2.0))
			Expect(obs.Tref).To(Equal(373.1311))
			Expect(obs.Tc).To(BeNumerically("~", 305.04, 0.01))
		})

		It("reports a zero reference in disabled mode", func() {
			obs, err := ep.Reset(configFor(reactor.ModeDisabled))
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.Cref).To(BeZero())
			Expect(obs.Tref).To(BeZero())
			Expect(obs.Cr).To(Equal(reactor.LowSteadyConcentration))
		})

		It("honours an explicit initial coolant temperature", func() {
			cfg := configFor(reactor.ModeLowSteady)
			cfg.InitialCoolant = 292
			obs, err := ep.Reset(cfg)
			Expect(err).NotTo(HaveOccurred())
			Expect(obs.Tc).To(Equal(292.0))
		})

		It("fills zero timing fields with defaults", func() {
			_, err := ep.Reset(reactor.EpisodeConfig{Mode: reactor.ModeLowSteady})
			Expect(err).NotTo(HaveOccurred())
			Expect(ep.Config().Interval).To(Equal(1.0))
			Expect(ep.Config().Substeps).To(Equal(2))
		})

		DescribeTable("rejects invalid configurations",
			func(cfg reactor.EpisodeConfig) {
				before := ep.Config()
				_, err := ep.Reset(cfg)
				Expect(err).To(MatchError(reactor.ErrInvalidConfig))
				Expect(ep.Config()).To(Equal(before))
			},
			Entry("unknown mode", reactor.EpisodeConfig{Mode: 7}),
			Entry("negative mode", reactor.EpisodeConfig{Mode: -1}),
			Entry("noise above one", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, NoiseFraction: 1.5}),
			Entry("negative noise", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, NoiseFraction: -0.1}),
			Entry("negative interval", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, Interval: -1}),
			Entry("negative substeps", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, Substeps: -2}),
			Entry("infinite interval", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, Interval: math.Inf(1)}),
			Entry("NaN interval", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, Interval: math.NaN()}),
			Entry("interval too long", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, Interval: reactor.MaxInterval + 1}),
			Entry("too many substeps", reactor.EpisodeConfig{Mode: reactor.ModeLowSteady, Substeps: reactor.MaxSubsteps + 1}),
		)

		It("accepts the longest allowed interval", func() {
			cfg := configFor(reactor.ModeLowSteady)
			cfg.Interval = reactor.MaxInterval
			_, err := ep.Reset(cfg)
			Expect(err).NotTo(HaveOccurred())
		})

		It("clears a halted episode", func() {
			_, err := ep.Step(reactor.Action{CoolantDelta: 15})
			Expect(err).To(HaveOccurred())
			Expect(ep.Halted()).To(BeTrue())

			_, err = ep.Reset(configFor(reactor.ModeLowSteady))
			Expect(err).NotTo(HaveOccurred())
			Expect(ep.Phase()).To(Equal(reactor.PhaseReady))
			Expect(ep.HaltReason()).To(Equal(reactor.HaltNone))
			Expect(ep.Halted()).To(BeFalse())
		})
	})

	Describe("State", func() {
		It("is a pure read", func() {
			_, err := ep.Step(reactor.Action{CoolantDelta: 3})
			Expect(err).NotTo(HaveOccurred())
			Expect(ep.State()).To(Equal(ep.State()))
		})
	})

	Describe("Step", func() {
		It("advances time and moves to running", func() {
			_, err := ep.Step(reactor.Action{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ep.Phase()).To(Equal(reactor.PhaseRunning))
			Expect(ep.Steps()).To(Equal(1))
			Expect(ep.Elapsed()).To(Equal(1.0))
		})

		It("accumulates coolant adjustments", func() {
			tc0 := ep.State().Tc
			_, err := ep.Step(reactor.Action{CoolantDelta: 4})
			Expect(err).NotTo(HaveOccurred())
			_, err = ep.Step(reactor.Action{CoolantDelta: -1.5})
			Expect(err).NotTo(HaveOccurred())
			Expect(ep.State().Tc).To(BeNumerically("~", tc0+2.5, 1e-12))
			Expect(ep.Physical().LastDelta).To(Equal(-1.5))
		})

		It("follows the transition schedule at the pre-step time", func() {
			sched := reactor.DefaultSchedule()
			for k := 0; k < 80; k++ {
				obs, err := ep.Step(reactor.Action{})
				Expect(err).NotTo(HaveOccurred())
				want := sched.Profile(float64(k))
				Expect(obs.Cref).To(BeNumerically("~", want.Concentration, 1e-12))
				Expect(obs.Tref).To(BeNumerically("~", want.Temperature, 1e-12))
			}
		})

		It("starts the ramp immediately in mode 1", func() {
			_, err := ep.Reset(configFor(reactor.ModeImmediateTransition))
			Expect(err).NotTo(HaveOccurred())

			first, err := ep.Step(reactor.Action{})
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Cref).To(Equal(8.57))

			second, err := ep.Step(reactor.Action{})
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Cref).To(BeNumerically("<", 8.57))
			Expect(second.Tref).To(BeNumerically(">", 311.2612))
		})

		Context("when the actuator limit is exceeded", func() {
			It("rejects the step without advancing the state", func() {
				_, err := ep.Step(reactor.Action{CoolantDelta: 2})
				Expect(err).NotTo(HaveOccurred())
				before := ep.Physical()
				obsBefore := ep.State()

				_, err = ep.Step(reactor.Action{CoolantDelta: 15})
				Expect(errors.Is(err, reactor.ErrActuatorLimitExceeded)).To(BeTrue())

				var stepErr *reactor.StepError
				Expect(errors.As(err, &stepErr)).To(BeTrue())
				Expect(stepErr.Step).To(Equal(1))
				Expect(stepErr.Delta).To(Equal(15.0))

				Expect(ep.Physical()).To(Equal(before))
				Expect(ep.State()).To(Equal(obsBefore))
				Expect(ep.Halted()).To(BeTrue())
				Expect(ep.HaltReason()).To(Equal(reactor.HaltActuatorLimit))
				Expect(logs.FilterMessage("actuator limit exceeded").Len()).To(Equal(1))
			})

			It("accepts exactly the limit", func() {
				_, err := ep.Step(reactor.Action{CoolantDelta: -10})
				Expect(err).NotTo(HaveOccurred())
				Expect(ep.Halted()).To(BeFalse())
			})

			It("refuses further steps until reset", func() {
				_, _ = ep.Step(reactor.Action{CoolantDelta: -12})
				_, err := ep.Step(reactor.Action{})
				Expect(err).To(MatchError(reactor.ErrHalted))
			})
		})

		Context("when the integrator diverges", func() {
			It("halts with ErrDiverged", func() {
				div, err := reactor.New(reactor.WithIntegrator(nanIntegrator{}))
				Expect(err).NotTo(HaveOccurred())

				_, err = div.Step(reactor.Action{})
				Expect(err).To(MatchError(reactor.ErrDiverged))
				Expect(errors.Is(err, dynamo.ErrInvalidState)).To(BeTrue())
				Expect(div.Halted()).To(BeTrue())
				Expect(div.HaltReason()).To(Equal(reactor.HaltDiverged))
				Expect(div.Physical().Temperature).To(Equal(reactor.LowSteadyTemperature))
			})
		})
	})

	Describe("Halted", func() {
		It("latches thermal runaway until reset", func() {
			_, err := ep.Reset(configFor(reactor.ModeLowSteady))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 30 && !ep.Halted(); i++ {
				_, err = ep.Step(reactor.Action{CoolantDelta: 10})
				Expect(err).NotTo(HaveOccurred())
			}

			Expect(ep.Halted()).To(BeTrue())
			Expect(ep.HaltReason()).To(Equal(reactor.HaltThermalRunaway))
			Expect(ep.Physical().Temperature).To(BeNumerically(">=", reactor.ThermalRunawayTemperature))

			for i := 0; i < 3; i++ {
				Expect(ep.Halted()).To(BeTrue())
				Expect(ep.Phase()).To(Equal(reactor.PhaseHalted))
			}
			_, err = ep.Step(reactor.Action{CoolantDelta: -10})
			Expect(err).To(MatchError(reactor.ErrHalted))
			Expect(logs.FilterMessage("episode halted").Len()).To(Equal(1))
		})
	})

	Describe("concentration collapse", func() {
		It("halts once the concentration reaches zero and stays halted", func() {
			core, collapseLogs := observer.New(zapcore.WarnLevel)
			drained, err := reactor.New(
				reactor.WithIntegrator(drainIntegrator{}),
				reactor.WithLogger(zap.New(core)),
			)
			Expect(err).NotTo(HaveOccurred())
			Expect(drained.Halted()).To(BeFalse())

			_, err = drained.Step(reactor.Action{})
			Expect(err).NotTo(HaveOccurred())
			Expect(drained.Physical().Concentration).To(BeNumerically("<=", 0))
			Expect(drained.Physical().Temperature).To(BeNumerically("<", reactor.ThermalRunawayTemperature))

			Expect(drained.Halted()).To(BeTrue())
			Expect(drained.HaltReason()).To(Equal(reactor.HaltConcentrationCollapse))
			Expect(drained.HaltReason().String()).To(Equal("concentration collapse"))
			Expect(drained.Phase()).To(Equal(reactor.PhaseHalted))

			_, err = drained.Step(reactor.Action{})
			Expect(err).To(MatchError(reactor.ErrHalted))
			Expect(drained.Halted()).To(BeTrue())
			Expect(drained.HaltReason()).To(Equal(reactor.HaltConcentrationCollapse))
			Expect(collapseLogs.FilterMessage("episode halted").Len()).To(Equal(1))

			_, err = drained.Reset(configFor(reactor.ModeLowSteady))
			Expect(err).NotTo(HaveOccurred())
			Expect(drained.Halted()).To(BeFalse())
		})
	})

	Describe("noise", func() {
		It("is reproducible for a given seed", func() {
			cfg := configFor(reactor.ModeTransition)
			cfg.NoiseFraction = 0.05

			run := func() []reactor.Observation {
				e, err := reactor.New(reactor.WithRand(seeded(42)))
				Expect(err).NotTo(HaveOccurred())
				_, err = e.Reset(cfg)
				Expect(err).NotTo(HaveOccurred())

				var out []reactor.Observation
				for i := 0; i < 10; i++ {
					obs, err := e.Step(reactor.Action{CoolantDelta: 1})
					Expect(err).NotTo(HaveOccurred())
					out = append(out, obs)
				}
				return out
			}
			Expect(run()).To(Equal(run()))
		})

		It("perturbs only the observation by default", func() {
			clean, err := reactor.New()
			Expect(err).NotTo(HaveOccurred())

			cfg := configFor(reactor.ModeLowSteady)
			cfg.NoiseFraction = 0.2
			_, err = ep.Reset(cfg)
			Expect(err).NotTo(HaveOccurred())
			_, err = clean.Reset(configFor(reactor.ModeLowSteady))
			Expect(err).NotTo(HaveOccurred())

			for i := 0; i < 5; i++ {
				noisy, err := ep.Step(reactor.Action{CoolantDelta: 2})
				Expect(err).NotTo(HaveOccurred())
				_, err = clean.Step(reactor.Action{CoolantDelta: 2})
				Expect(err).NotTo(HaveOccurred())

				Expect(ep.Physical()).To(Equal(clean.Physical()))
				Expect(noisy.Tr).NotTo(Equal(ep.Physical().Temperature))
			}
		})

		It("feeds back into the physical state with process noise", func() {
			cfg := configFor(reactor.ModeLowSteady)
			cfg.NoiseFraction = 0.01
			cfg.ProcessNoise = true
			_, err := ep.Reset(cfg)
			Expect(err).NotTo(HaveOccurred())

			obs, err := ep.Step(reactor.Action{})
			Expect(err).NotTo(HaveOccurred())
			Expect(ep.Physical().Concentration).To(Equal(obs.Cr))
			Expect(ep.Physical().Temperature).To(Equal(obs.Tr))
		})
	})

	Describe("steady operation", func() {
		DescribeTable("holds the low-temperature steady state for 90 intervals",
			func(method string) {
				var opts []reactor.Option
				if method == "rk4" {
					opts = append(opts, reactor.WithIntegrator(integrators.NewRK4()))
				}
				e, err := reactor.New(opts...)
				Expect(err).NotTo(HaveOccurred())

				start, err := e.Reset(configFor(reactor.ModeLowSteady))
				Expect(err).NotTo(HaveOccurred())
				Expect(start.Cref).To(Equal(reactor.LowSteadyConcentration))
				Expect(start.Tref).To(Equal(reactor.LowSteadyTemperature))

				for i := 0; i < 90; i++ {
					Expect(e.Halted()).To(BeFalse())
					obs, err := e.Step(reactor.Action{CoolantDelta: 0})
					Expect(err).NotTo(HaveOccurred())
					Expect(obs.Cr).To(BeNumerically("~", start.Cr, 0.01*start.Cr))
					Expect(obs.Tr).To(BeNumerically("~", start.Tr, 0.01*start.Tr))
				}
				Expect(e.Halted()).To(BeFalse())
			},
			Entry("Dormand-Prince", "rk45"),
			Entry("RK4", "rk4"),
		)
	})
})
