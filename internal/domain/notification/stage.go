package notification

import "subscription_notifier/internal/domain/calendar"

// Stage identifies one step of the expiry notification lifecycle.
type Stage string

const (
	StagePreExpiry         Stage = "PRE_EXPIRY_5D"   // 5 days before the cycle ends
	StageFinalDay          Stage = "FINAL_DAY_1D"    // last full day
	StageLockout           Stage = "EXPIRED_LOCKOUT" // the cycle ends today
	StageRetentionReminder Stage = "POST_EXPIRY_10D" // first reminder after expiry
	StageArchivalWarning   Stage = "POST_EXPIRY_30D" // last notice before archival
)

// ArchivalDelayDays is how long after the cycle end an account's data is archived.
const ArchivalDelayDays = 60

// stageByOffset is an exact-match table. A day without a batch run skips the
// stage for that offset; ranges are deliberately not used so adjacent stages
// can never both fire.
var stageByOffset = map[int]Stage{
	5:   StagePreExpiry,
	1:   StageFinalDay,
	0:   StageLockout,
	-10: StageRetentionReminder,
	-30: StageArchivalWarning,
}

// AllStages lists stages in lifecycle order.
func AllStages() []Stage {
	return []Stage{StagePreExpiry, StageFinalDay, StageLockout, StageRetentionReminder, StageArchivalWarning}
}

// ResolveOffset returns the days left until cycleEnd as seen on today:
// positive while active, 0 on the last day, negative after expiry.
func ResolveOffset(cycleEnd, today calendar.Date) int {
	return calendar.DaysBetween(today, cycleEnd)
}

// ResolveStage maps an offset to its stage. ok is false when nothing fires.
func ResolveStage(offset int) (stage Stage, ok bool) {
	stage, ok = stageByOffset[offset]
	return stage, ok
}

// ArchivalDate is the day the tenant's data is archived.
func ArchivalDate(cycleEnd calendar.Date) calendar.Date {
	return cycleEnd.AddDays(ArchivalDelayDays)
}

func (s Stage) Valid() bool {
	for _, st := range AllStages() {
		if st == s {
			return true
		}
	}
	return false
}
