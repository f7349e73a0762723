package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

const erc20JSON = `[
{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]}
]`

const termsEscrowJSON = `[
{"type":"function","name":"getDetails","stateMutability":"view","inputs":[],"outputs":[
 {"name":"creator","type":"address"},{"name":"payer","type":"address"},{"name":"termsHash","type":"bytes32"},
 {"name":"totalAmount","type":"uint256"},{"name":"fundedAmount","type":"uint256"},{"name":"releasedAmount","type":"uint256"},
 {"name":"state","type":"uint8"},{"name":"fundedAt","type":"uint256"},{"name":"autoReleaseDays","type":"uint256"},
 {"name":"deliverableCount","type":"uint256"},{"name":"currentDeliverable","type":"uint256"}]},
{"type":"function","name":"getDeliverable","stateMutability":"view","inputs":[{"name":"index","type":"uint256"}],"outputs":[
 {"name":"amount","type":"uint256"},{"name":"criteriaHash","type":"bytes32"},{"name":"deadlineDays","type":"uint256"},
 {"name":"funded","type":"bool"},{"name":"approved","type":"bool"},{"name":"disputed","type":"bool"}]},
{"type":"function","name":"canAutoRelease","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"signTerms","stateMutability":"nonpayable","inputs":[{"name":"signature","type":"bytes"}],"outputs":[]},
{"type":"function","name":"fundDeliverable","stateMutability":"nonpayable","inputs":[{"name":"index","type":"uint256"}],"outputs":[]},
{"type":"function","name":"approveDeliverable","stateMutability":"nonpayable","inputs":[{"name":"index","type":"uint256"}],"outputs":[]},
{"type":"function","name":"disputeDeliverable","stateMutability":"nonpayable","inputs":[{"name":"index","type":"uint256"},{"name":"reason","type":"string"}],"outputs":[]},
{"type":"function","name":"autoRelease","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const termsFactoryJSON = `[
{"type":"function","name":"createEscrow","stateMutability":"nonpayable","inputs":[
 {"name":"invoiceId","type":"bytes32"},{"name":"termsHash","type":"bytes32"},{"name":"amounts","type":"uint256[]"},
 {"name":"criteriaHashes","type":"bytes32[]"},{"name":"deadlineDays","type":"uint256[]"},{"name":"autoReleaseDays","type":"uint256"}],
 "outputs":[{"name":"","type":"address"}]},
{"type":"event","name":"EscrowCreated","anonymous":false,"inputs":[
 {"name":"invoiceId","type":"bytes32","indexed":true},{"name":"escrow","type":"address","indexed":true},
 {"name":"creator","type":"address","indexed":true},{"name":"termsHash","type":"bytes32","indexed":false},
 {"name":"totalAmount","type":"uint256","indexed":false},{"name":"deliverableCount","type":"uint256","indexed":false}]}
]`

const yieldEscrowJSON = `[
{"type":"function","name":"state","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
{"type":"function","name":"getCurrentValue","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"getAccruedYield","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"originalUsdcAmount","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"depositedUsycShares","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"payer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"creator","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"fundedAt","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
{"type":"function","name":"canAutoRelease","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"getDetails","stateMutability":"view","inputs":[],"outputs":[
 {"name":"creator","type":"address"},{"name":"payer","type":"address"},{"name":"amount","type":"uint256"},
 {"name":"shares","type":"uint256"},{"name":"state","type":"uint8"},{"name":"fundedAt","type":"uint256"},
 {"name":"autoReleaseDays","type":"uint256"}]},
{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[{"name":"amount","type":"uint256"}],"outputs":[]},
{"type":"function","name":"release","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const yieldFactoryJSON = `[
{"type":"function","name":"createEscrow","stateMutability":"nonpayable","inputs":[
 {"name":"invoiceId","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"autoReleaseDays","type":"uint256"}],
 "outputs":[{"name":"","type":"address"}]},
{"type":"function","name":"getEscrow","stateMutability":"view","inputs":[{"name":"invoiceId","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]},
{"type":"event","name":"EscrowCreated","anonymous":false,"inputs":[
 {"name":"invoiceId","type":"bytes32","indexed":true},{"name":"escrow","type":"address","indexed":true},
 {"name":"creator","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},
 {"name":"autoReleaseDays","type":"uint256","indexed":false}]}
]`

// Simple (v1) and milestone (v3) escrows expose the fragments below.
const simpleEscrowJSON = `[
{"type":"function","name":"getDetails","stateMutability":"view","inputs":[],"outputs":[
 {"name":"creator","type":"address"},{"name":"payer","type":"address"},{"name":"amount","type":"uint256"},
 {"name":"state","type":"uint8"},{"name":"fundedAt","type":"uint256"},{"name":"autoReleaseDays","type":"uint256"}]},
{"type":"function","name":"canAutoRelease","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"bool"}]},
{"type":"function","name":"deposit","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"release","stateMutability":"nonpayable","inputs":[],"outputs":[]},
{"type":"function","name":"refund","stateMutability":"nonpayable","inputs":[],"outputs":[]}
]`

const simpleFactoryJSON = `[
{"type":"function","name":"createEscrow","stateMutability":"nonpayable","inputs":[
 {"name":"invoiceId","type":"bytes32"},{"name":"amount","type":"uint256"},{"name":"autoReleaseDays","type":"uint256"}],
 "outputs":[{"name":"","type":"address"}]},
{"type":"event","name":"EscrowCreated","anonymous":false,"inputs":[
 {"name":"invoiceId","type":"bytes32","indexed":true},{"name":"escrow","type":"address","indexed":true},
 {"name":"creator","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false},
 {"name":"autoReleaseDays","type":"uint256","indexed":false}]}
]`

const milestoneEscrowJSON = `[
{"type":"function","name":"getDetails","stateMutability":"view","inputs":[],"outputs":[
 {"name":"creator","type":"address"},{"name":"payer","type":"address"},{"name":"totalAmount","type":"uint256"},
 {"name":"fundedAmount","type":"uint256"},{"name":"releasedAmount","type":"uint256"},{"name":"state","type":"uint8"},
 {"name":"milestoneCount","type":"uint256"},{"name":"currentMilestone","type":"uint256"}]},
{"type":"function","name":"fundMilestone","stateMutability":"nonpayable","inputs":[{"name":"index","type":"uint256"}],"outputs":[]},
{"type":"function","name":"approveMilestone","stateMutability":"nonpayable","inputs":[{"name":"index","type":"uint256"}],"outputs":[]}
]`

const milestoneFactoryJSON = `[
{"type":"function","name":"createEscrow","stateMutability":"nonpayable","inputs":[
 {"name":"invoiceId","type":"bytes32"},{"name":"amounts","type":"uint256[]"},{"name":"autoReleaseDays","type":"uint256"}],
 "outputs":[{"name":"","type":"address"}]},
{"type":"event","name":"EscrowCreated","anonymous":false,"inputs":[
 {"name":"invoiceId","type":"bytes32","indexed":true},{"name":"escrow","type":"address","indexed":true},
 {"name":"creator","type":"address","indexed":true},{"name":"totalAmount","type":"uint256","indexed":false},
 {"name":"milestoneCount","type":"uint256","indexed":false}]}
]`

var (
	ERC20ABI            = mustParseABI(erc20JSON)
	TermsEscrowABI      = mustParseABI(termsEscrowJSON)
	TermsFactoryABI     = mustParseABI(termsFactoryJSON)
	YieldEscrowABI      = mustParseABI(yieldEscrowJSON)
	YieldFactoryABI     = mustParseABI(yieldFactoryJSON)
	SimpleEscrowABI     = mustParseABI(simpleEscrowJSON)
	SimpleFactoryABI    = mustParseABI(simpleFactoryJSON)
	MilestoneEscrowABI  = mustParseABI(milestoneEscrowJSON)
	MilestoneFactoryABI = mustParseABI(milestoneFactoryJSON)
)

// EscrowCreated topics. Simple, milestone and yield factories share one
// signature; the terms factory adds the terms hash.
var (
	TermsEscrowCreatedTopic = crypto.Keccak256Hash([]byte("EscrowCreated(bytes32,address,address,bytes32,uint256,uint256)"))
	YieldEscrowCreatedTopic = crypto.Keccak256Hash([]byte("EscrowCreated(bytes32,address,address,uint256,uint256)"))
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic("chain: invalid ABI: " + err.Error())
	}
	return parsed
}
