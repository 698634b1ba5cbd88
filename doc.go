// Package mfss maps between vectors of free parameters and linear
// Gaussian state-space systems.
//
// A system is the pair of equations
//
//	y_t = Z x_t + d + beta w_t + eps_t,   eps_t ~ N(0, H)
//	x_t = T x_{t-1} + c + gamma w_t + R eta_t,   eta_t ~ N(0, Q)
//
// held as a set of named matrices, each optionally time-varying through
// an integer period selector. Estimating such a system means searching
// over the entries that are not pinned to constants, while keeping
// variances positive, shared entries equal and user bounds respected.
// The packages here factor that search space into an unconstrained
// theta vector and translate in both directions.
//
// # Packages
//
//   - ssm: the System and Param types, validation and the stationary
//     distribution of the state equation
//   - expr: per-entry definitions (literal, free variable, composite)
//   - transform: the monotone maps from the real line onto bound
//     intervals and their registry
//   - thetamap: the bidirectional theta mapping itself, with
//     restriction, initial-condition and compression operations
//   - matx: small dense-matrix helpers shared by the rest
//
// # Basic Usage
//
//	sys, err := ssm.New(Z, d, ssm.Param{}, H, T, c, ssm.Param{}, R, Q)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	tm, err := thetamap.NewEstimation(sys, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fitted, err := tm.Theta2System(theta)
//
// System2Theta inverts the construction, recovering theta from any
// conforming system inside the map's bounds.
package mfss
