// Package viz renders reactor episodes in the terminal.
//
// [Model] is a Bubble Tea program that steps an episode on every tick and
// draws Tr/Tref and Cr/Cref charts next to a braille [Canvas] phase portrait.
// With the manual controller the arrow keys set the next coolant adjustment.
//
// # Key Bindings
//
//	Space - Pause/Resume
//	S     - Single step while paused
//	R     - Reset the episode
//	↑/↓   - Nudge the coolant adjustment (manual controller)
//	H     - Hold the adjustment across intervals (manual controller)
//	T     - Cycle color themes
//	?     - Show help overlay
package viz
