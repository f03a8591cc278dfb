package storage

import (
	"sort"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func accountPK(accountID string) string { return "ACCOUNT#" + accountID }

const configSK = "CONFIG#settings"

func campaignSK(t string) string { return "CAMPAIGN#" + t }

func targetPrefix(t string) string { return "TARGET#" + t + "#" }

func key(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func sortedKeys(m map[string]map[string]types.AttributeValue) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
