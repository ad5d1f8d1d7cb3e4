package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ConnectionState describes the wallet session lifecycle.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
)

// ActionKey identifies a user-initiated contract action. At most one
// operation per key may be in flight at any time.
type ActionKey string

const (
	ActionStake    ActionKey = "stake"
	ActionUnstake  ActionKey = "unstake"
	ActionClaim    ActionKey = "claim"
	ActionCollect  ActionKey = "collect"
	ActionCommit   ActionKey = "commit"
	ActionWithdraw ActionKey = "withdraw"
	ActionRefund   ActionKey = "refund"
	ActionLaunch   ActionKey = "launch"
	ActionDownload ActionKey = "download"
)

// ProjectStage is one of the four sequential lifecycle phases a project
// token moves through on the platform.
type ProjectStage string

const (
	StageCurating    ProjectStage = "curating"
	StageFundraising ProjectStage = "fundraising"
	StageAMM         ProjectStage = "amm"
	StageStaking     ProjectStage = "staking"
)

// StakingData is a snapshot of on-chain staking state for one
// account+pool pair. Amounts are raw wei; formatting happens at the
// presentation boundary only. A nil field means "not yet loaded",
// never zero.
type StakingData struct {
	UserStaked     *big.Int
	TotalStaked    *big.Int
	PendingRewards *big.Int
	StakingToken   common.Address
	RewardToken    common.Address
	PoolShare      string // user share of the pool, e.g. "29.51%"
}

// CurationData is a snapshot of on-chain curation state for one
// account+project pair.
type CurationData struct {
	TotalCommitted *big.Int
	UserCommitted  *big.Int
	CurationLimit  *big.Int
	Active         bool
}

// ProjectLaunchData describes the contracts a curation round resolved
// to at launch. A zero StakingContract address means the project has
// not launched and staking is unavailable.
type ProjectLaunchData struct {
	StakingContract common.Address
	BioToken        common.Address
	Launched        bool
}

// Dataset describes one downloadable research dataset in the data
// marketplace.
type Dataset struct {
	ID          string `yaml:"id"`
	Project     string `yaml:"project"`
	Name        string `yaml:"name"`
	Accessible  bool   `yaml:"accessible"`
	DownloadURL string `yaml:"download_url"`
}

// DownloadStatus is the lifecycle of one dataset download.
type DownloadStatus string

const (
	DownloadIdle       DownloadStatus = "idle"
	DownloadInProgress DownloadStatus = "downloading"
	DownloadSucceeded  DownloadStatus = "success"
	DownloadFailed     DownloadStatus = "error"
)

// DownloadProgress reports streaming download progress. Percent is
// meaningful only when Determinate is true (the response carried a
// Content-Length header).
type DownloadProgress struct {
	Status      DownloadStatus
	Percent     int
	Determinate bool
	FileName    string
}
