// ABOUTME: shouldExpress is the per-tick utility function deciding whether, and what kind of,
// ABOUTME: proactive utterance to plan: quiet-period and daily-cap gates, then time-of-day rules.

package proactive

const (
	morningHourStart = 6
	morningHourEnd   = 9
	eveningHourStart = 20
	eveningHourEnd   = 23
)

// shouldExpress applies the quiet-period and daily-cap gates, then picks an
// expression type by time-of-day and silence rules. sentToday is the number
// of expressions already fired for this user today.
func shouldExpress(signals Signals, settings UserSettings, sentToday int) (bool, ExpressionType, int) {
	if !settings.Enabled {
		return false, "", 0
	}

	stage := StageForCount(signals.InteractionCount)
	if sentToday >= settings.dailyCap(stage) {
		return false, "", 0
	}

	quiet := signals.Now.Sub(signals.LastHumanTurnAt)
	if quiet < settings.minQuiet() {
		// Only an explicitly triggered reminder may fire inside the quiet
		// window; the tick-driven decision never does.
		return false, "", 0
	}

	switch {
	case signals.LocalHour >= morningHourStart && signals.LocalHour < morningHourEnd:
		return true, Greeting, 2
	case signals.LocalHour >= eveningHourStart && signals.LocalHour < eveningHourEnd:
		return true, Farewell, 2
	case quiet > 2*defaultMinQuiet && stage != StageInitial:
		return true, Care, 1
	default:
		return false, "", 0
	}
}
