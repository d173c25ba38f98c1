// Copyright (c) 2024 Fantom Foundation
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at fantom.foundation/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package pagecache

// Signal is a one-shot condition. It starts out unpulsed; once pulsed it
// stays pulsed for the rest of its life time and all current and future
// waiters proceed. Pulsing requires the cache mutex, waiting does not.
type Signal struct {
	ch     chan struct{}
	pulsed bool
}

func newSignal() *Signal {
	return &Signal{ch: make(chan struct{})}
}

// pulse fires the signal. Pulsing an already pulsed signal has no effect.
// Requires the cache mutex.
func (s *Signal) pulse() {
	if !s.pulsed {
		s.pulsed = true
		close(s.ch)
	}
}

// isPulsed requires the cache mutex.
func (s *Signal) isPulsed() bool {
	return s.pulsed
}

// Done returns a channel that is closed once the signal has been pulsed.
func (s *Signal) Done() <-chan struct{} {
	return s.ch
}

// Wait blocks until the signal has been pulsed.
func (s *Signal) Wait() {
	<-s.ch
}
