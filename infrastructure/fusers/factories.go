package fusers

import (
	"github.com/ahrav/go-rankfuse/internal/domain"
	"github.com/ahrav/go-rankfuse/internal/ports"
)

// Factories returns a factory for every supported algorithm, keyed by
// algorithm. The application registry seeds itself from this map.
func Factories[I comparable]() map[domain.Algorithm]ports.FuserFactory[I] {
	return map[domain.Algorithm]ports.FuserFactory[I]{
		domain.AlgorithmRRF:               NewRRFFromConfig[I],
		domain.AlgorithmISR:               NewISRFromConfig[I],
		domain.AlgorithmBorda:             NewBordaFromConfig[I],
		domain.AlgorithmRBC:               NewRBCFromConfig[I],
		domain.AlgorithmCombSUM:           CombFactory[I](domain.AlgorithmCombSUM),
		domain.AlgorithmCombMNZ:           CombFactory[I](domain.AlgorithmCombMNZ),
		domain.AlgorithmCombMAX:           CombFactory[I](domain.AlgorithmCombMAX),
		domain.AlgorithmCombMED:           CombFactory[I](domain.AlgorithmCombMED),
		domain.AlgorithmCombANZ:           CombFactory[I](domain.AlgorithmCombANZ),
		domain.AlgorithmDBSF:              NewDBSFFromConfig[I],
		domain.AlgorithmStandardized:      NewStandardizedFromConfig[I],
		domain.AlgorithmWeighted:          NewWeightedFromConfig[I],
		domain.AlgorithmAdditiveMultiTask: NewAdditiveMultiTaskFromConfig[I],
	}
}
