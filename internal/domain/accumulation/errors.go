package accumulation

import "github.com/maven/accumulator/internal/domain/accumulation/mappingerr"

type (
	InvalidAccumulationMappingData = mappingerr.InvalidAccumulationMappingData
	AccumulationAdjustmentNeeded   = mappingerr.AccumulationAdjustmentNeeded
)
