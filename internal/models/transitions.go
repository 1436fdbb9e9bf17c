package models

// SoftResetJob creates the job patch for a retry whose validation passed
// Pure function - returns new instance
func SoftResetJob() JobUpdate {
	status := JobStatusPending
	percentage := 0
	reason := ""
	return JobUpdate{
		Status:     &status,
		Percentage: &percentage,
		Reason:     &reason,
	}
}

// SoftResetTask creates the task patch for a retry whose validation passed.
// Parameters are left untouched.
// Pure function - returns new instance
func SoftResetTask() TaskUpdate {
	status := JobStatusPending
	attempts := 0
	percentage := 0
	return TaskUpdate{
		Status:     &status,
		Attempts:   &attempts,
		Percentage: &percentage,
	}
}

// HardResetTask creates the task patch for a retry that recomputed the
// fingerprints. The previous report is kept, validity is cleared.
// Pure function - returns new instance
func HardResetTask(previous ValidationTaskParameters, merged []FileFingerprint) TaskUpdate {
	update := SoftResetTask()
	checksums := make([]FileFingerprint, len(merged))
	copy(checksums, merged)
	update.Parameters = &ValidationTaskParameters{
		IsValid:   false,
		Report:    previous.Report,
		Checksums: checksums,
	}
	return update
}

// MergeFingerprints appends to previous every fingerprint whose digest is not
// already present. Previous entries are never dropped or reordered, so the
// history only grows. It returns the merged list and the appended entries.
// Pure function - inputs are not mutated
func MergeFingerprints(previous, current []FileFingerprint) ([]FileFingerprint, []FileFingerprint) {
	seen := make(map[string]struct{}, len(previous)+len(current))
	merged := make([]FileFingerprint, 0, len(previous)+len(current))
	for _, fp := range previous {
		seen[fp.Checksum] = struct{}{}
		merged = append(merged, fp)
	}

	var added []FileFingerprint
	for _, fp := range current {
		if _, ok := seen[fp.Checksum]; ok {
			continue
		}
		seen[fp.Checksum] = struct{}{}
		merged = append(merged, fp)
		added = append(added, fp)
	}
	return merged, added
}
