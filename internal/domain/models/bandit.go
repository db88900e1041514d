package models

// BanditArm holds the Beta posterior of one strategy.
type BanditArm struct {
	StrategyID string  `json:"strategyId"`
	Wins       int     `json:"wins"`
	Trials     int     `json:"trials"`
	Alpha      float64 `json:"alpha"`
	Beta       float64 `json:"beta"`
}

// NewBanditArm returns an arm at the uniform prior.
func NewBanditArm(strategyID string) BanditArm {
	return BanditArm{StrategyID: strategyID, Wins: 1, Trials: 1, Alpha: 1, Beta: 1}
}

// StrategyPerformance is the aggregated record written to the performance store.
type StrategyPerformance struct {
	StrategyID string    `json:"strategyId"`
	Name       string    `json:"name"`
	Wins       int       `json:"wins"`
	Trials     int       `json:"trials"`
	TotalPnL   float64   `json:"totalPnl"`
	Alpha      float64   `json:"alpha"`
	Beta       float64   `json:"beta"`
	History    []float64 `json:"history"`
}

// WinRate is wins over trials including the prior.
func (p StrategyPerformance) WinRate() float64 {
	if p.Trials == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.Trials)
}
