package chain

import (
	"fmt"
	"os"

	"github.com/arc-invoice/backend/internal/errs"
	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"
)

// Logical contract names
const (
	ContractUSDC                     = "USDC"
	ContractFactory                  = "FACTORY"
	ContractFeeCollector             = "FEE_COLLECTOR"
	ContractMilestoneFactory         = "MILESTONE_FACTORY"
	ContractMilestoneFactoryV2Legacy = "MILESTONE_FACTORY_V2_LEGACY"
	ContractTermsFactory             = "TERMS_FACTORY"
	ContractYieldFactory             = "YIELD_FACTORY"
	ContractMockUSYC                 = "MOCK_USYC"
)

const (
	NetworkArcTestnet uint64 = 5042002
	NetworkArcMainnet uint64 = 5042001
)

// AddressBook maps network id -> contract name -> address. An empty address
// means the contract is not deployed on that network.
type AddressBook struct {
	Networks map[uint64]map[string]string `yaml:"networks"`
}

func DefaultAddressBook() *AddressBook {
	return &AddressBook{Networks: map[uint64]map[string]string{
		NetworkArcTestnet: {
			ContractUSDC:                     "0x3600000000000000000000000000000000000000",
			ContractFactory:                  "0x07a7be2be306a4C37c7E526235BEcB7BF4C018FB",
			ContractFeeCollector:             "0xAE80D683b366e144DFdDD7e2D9667414F689CD9f",
			ContractMilestoneFactory:         "0x254B00aeCF760Fff8d06364F22c035C077923ac4",
			ContractMilestoneFactoryV2Legacy: "0x9F9c0955083459978Af2EaCc6C223315085Fb777",
			ContractTermsFactory:             "0x6E10Eed6f1f1FBB206c8570Fc3Cd394589863C36",
			ContractYieldFactory:             "0x30220b2260165fEBD7a24C174622D0099a682fC9",
			ContractMockUSYC:                 "0x155F4F1aAC574AcE671BED6a08e6b9d2D29ce43e",
		},
		NetworkArcMainnet: {
			ContractUSDC:                     "0x3600000000000000000000000000000000000000",
			ContractFactory:                  "",
			ContractFeeCollector:             "",
			ContractMilestoneFactory:         "",
			ContractMilestoneFactoryV2Legacy: "",
			ContractTermsFactory:             "",
			ContractYieldFactory:             "",
			ContractMockUSYC:                 "",
		},
	}}
}

// LoadAddressBook reads a YAML address book. An empty path yields the default book.
func LoadAddressBook(path string) (*AddressBook, error) {
	if path == "" {
		return DefaultAddressBook(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read address book: %w", err)
	}
	var book AddressBook
	if err := yaml.Unmarshal(data, &book); err != nil {
		return nil, fmt.Errorf("parse address book: %w", err)
	}
	for network, contracts := range book.Networks {
		for name, addr := range contracts {
			if addr != "" && !common.IsHexAddress(addr) {
				return nil, fmt.Errorf("address book: network %d contract %s: invalid address %q", network, name, addr)
			}
		}
	}
	return &book, nil
}

func (b *AddressBook) Supports(network uint64) bool {
	_, ok := b.Networks[network]
	return ok
}

func (b *AddressBook) Lookup(network uint64, name string) (common.Address, error) {
	contracts, ok := b.Networks[network]
	if !ok {
		return common.Address{}, errs.New(errs.KindUnsupportedNetwork, "Unsupported chain: %d", network)
	}
	addr := contracts[name]
	if addr == "" {
		return common.Address{}, errs.New(errs.KindContractNotDeployed, "Contract %s not deployed on chain %d", name, network)
	}
	return common.HexToAddress(addr), nil
}

// MilestoneFactory resolves the factory for a milestone contract version.
// Version 2 is the legacy fund-all-upfront factory.
func (b *AddressBook) MilestoneFactory(network uint64, version int) (common.Address, error) {
	if version == 2 {
		return b.Lookup(network, ContractMilestoneFactoryV2Legacy)
	}
	return b.Lookup(network, ContractMilestoneFactory)
}
