package approvals

import (
	"strings"

	"github.com/brojonat/chainsync/service/chain"
)

// Contracts deployed at the same address on every supported EVM chain.
var crossChainSpenders = map[string]string{
	"0x000000000022d473030f116ddee9f6b43ac78ba3": "Uniswap Permit2",
	"0x3fc91a3afd70395cd496c647d5a6cc9d4b2b7fad": "Uniswap Universal Router",
	"0x1111111254eeb25477b68fb85ed929f73a960582": "1inch Aggregation Router V5",
	"0x111111125421ca6dc452d289314280a0f8842a65": "1inch Aggregation Router V6",
	"0x00000000000000adc04c56bf30ac9d3c0aaf14dc": "OpenSea Seaport 1.5",
	"0x0000000000000068f116a894984e2db1123eb395": "OpenSea Seaport 1.6",
}

var chainSpenders = map[chain.Chain]map[string]string{
	chain.Ethereum: {
		"0x7a250d5630b4cf539739df2c5dacb4c659f2488d": "Uniswap V2 Router",
		"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
		"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "Uniswap V3 Router 2",
		"0xd9e1ce17f2641f24ae83637ab66a2cca9c378b9f": "SushiSwap Router",
		"0xdef1c0ded9bec7f1a1670819833240f027b25eff": "0x Exchange Proxy",
		"0x87870bca3f3fd6335c3f4ce8392d69350b4fa4e2": "Aave V3 Pool",
	},
	chain.Polygon: {
		"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
		"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "Uniswap V3 Router 2",
		"0x794a61358d6845594f94dc1db02a252b5b4814ad": "Aave V3 Pool",
	},
	chain.Arbitrum: {
		"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
		"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "Uniswap V3 Router 2",
		"0x794a61358d6845594f94dc1db02a252b5b4814ad": "Aave V3 Pool",
	},
	chain.Optimism: {
		"0xe592427a0aece92de3edee1f18e0157c05861564": "Uniswap V3 Router",
		"0x68b3465833fb72a70ecdf485e0e4c7bd8665fc45": "Uniswap V3 Router 2",
		"0x794a61358d6845594f94dc1db02a252b5b4814ad": "Aave V3 Pool",
	},
	chain.Base: {
		"0x2626664c2603336e57b271c5c0b26f421741e481": "Uniswap V3 Router 2",
		"0xa238dd80c259a72e81d7e4664a9801593f98d1c5": "Aave V3 Pool",
	},
}

// SpenderName looks up the display name of a well-known spender contract.
func SpenderName(c chain.Chain, address string) (string, bool) {
	addr := strings.ToLower(address)
	if name, ok := chainSpenders[c][addr]; ok {
		return name, true
	}
	if c.Family() != chain.FamilyEVM {
		return "", false
	}
	name, ok := crossChainSpenders[addr]
	return name, ok
}
