package epiworld

// Mixer combines the protective effects of every tool agent a carries
// against virus v into one effective reduction per channel (spec.md
// S4.4). Models may swap in a custom Mixer; the default is a
// complement-product.
type Mixer func(a *Agent, v *VirusInstance, m *Model) (susceptibility, transmission, recovery, death float64)

// DefaultMixer implements the complement-product rule: effective(x) =
// 1 - Π_t(1 - t.reduce_x(v)), for each of the four channels.
func DefaultMixer(a *Agent, v *VirusInstance, m *Model) (susceptibility, transmission, recovery, death float64) {
	susc, trans, recov, death_ := 1.0, 1.0, 1.0, 1.0
	for _, t := range a.tools {
		susc *= 1 - t.ReduceSusceptibility(a, v, m)
		trans *= 1 - t.ReduceInfecting(a, v, m)
		recov *= 1 - t.ReduceRecovery(a, v, m)
		death_ *= 1 - t.ReduceDeath(a, v, m)
	}
	return 1 - susc, 1 - trans, 1 - recov, 1 - death_
}
