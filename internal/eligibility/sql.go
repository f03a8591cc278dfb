package eligibility

import "fmt"

// localDate converts a stored UTC timestamp column into the local calendar date.
func localDate(col string) string {
	return fmt.Sprintf("TO_DATE(DATEADD(hour, -3, %s))", col)
}

const phonePredicate = `c.TELEFONE IS NOT NULL
  AND LENGTH(REGEXP_REPLACE(c.TELEFONE, '[^0-9]', '')) >= 10`

const voucherPredicate = `(CUPOM IS NOT NULL OR TIPO_PAGAMENTO = 'VOUCHER')`

const successfulSale = `STATUS = 'SUCESSO'`

// historyCTE aggregates the last send per user for @campaign_type.
func historyCTE(t Tables) string {
	return fmt.Sprintf(`message_history AS (
  SELECT USER_ID, MAX(SENT_AT) AS LAST_MESSAGE_SENT
  FROM %s
  WHERE CAMPAIGN_TYPE = @campaign_type
  GROUP BY USER_ID
)`, t.MessageHistory)
}

const customerColumns = `c.ID AS CUSTOMER_ID,
  c.NOME AS NAME,
  c.TELEFONE AS PHONE`
