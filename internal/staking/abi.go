package staking

// StakingABI is the interface of the launchpad staking pool contract.
// Function names are a fixed contract; they must match the deployed
// bytecode exactly.
const StakingABI = `[
	{
		"constant": false,
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "deposit",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "amount", "type": "uint256"}
		],
		"name": "withdraw",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [{"name": "staker", "type": "address"}],
		"name": "claimAllRewards",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": false,
		"inputs": [],
		"name": "collectRoyalties",
		"outputs": [],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "staker", "type": "address"}
		],
		"name": "getUserStakedBalance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [{"name": "token", "type": "address"}],
		"name": "getPoolTotalStakedBalance",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [
			{"name": "token", "type": "address"},
			{"name": "staker", "type": "address"}
		],
		"name": "getPendingRewardsForStaker",
		"outputs": [{"name": "", "type": "uint256"}],
		"type": "function"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "staker", "type": "address"},
			{"indexed": true, "name": "token", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "Deposited",
		"type": "event"
	},
	{
		"anonymous": false,
		"inputs": [
			{"indexed": true, "name": "staker", "type": "address"},
			{"indexed": true, "name": "token", "type": "address"},
			{"indexed": false, "name": "amount", "type": "uint256"}
		],
		"name": "Withdrawn",
		"type": "event"
	}
]`
