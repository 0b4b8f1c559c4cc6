package panel

import (
	"context"

	"github.com/ncobase/jobpanel/job/structs"
)

// PollOnce polls the job once. The cursor advances to the returned offset
// and never moves back; a missing offset leaves it in place. On error the
// cursor is returned unchanged together with the error.
func PollOnce(ctx context.Context, poller Poller, handle structs.JobHandle, cursor structs.PollCursor) (structs.PollCursor, structs.LogChunk, structs.JobStatus, error) {
	res, err := poller.Poll(ctx, handle.JobID, cursor.Offset)
	if err != nil {
		return cursor, nil, structs.StatusUnknown, err
	}
	if res == nil {
		return cursor, nil, structs.StatusUnknown, nil
	}
	return cursor.Advance(res.Offset), structs.SplitChunk(res.Chunk), res.JobStatus(), nil
}
