package bqstore

import (
	"fmt"
	"strings"
)

// conflictMarker prefixes errors raised by the link script when a guard fails.
const conflictMarker = "finoob link conflict"

const selectColumns = `account_id, account, transaction_number, transaction_id, date, year, month,
		description, debit, credit, original_debit, balance, category, label,
		transaction_type, reimbursement, ingested_at, last_updated`

const lastTransactionSQL = `
	SELECT ` + selectColumns + `
	FROM {{table}}
	WHERE account_id = @account_id
	ORDER BY transaction_number DESC, date DESC
	LIMIT 1`

const maxNumberSQL = `
	SELECT MAX(transaction_number) AS max_num
	FROM {{table}}
	WHERE account_id = @account_id`

const getSQL = `
	SELECT ` + selectColumns + `
	FROM {{table}}
	WHERE account_id = @account_id AND transaction_number = @transaction_number`

const uncategorizedSQL = `
	SELECT ` + selectColumns + `
	FROM {{table}}
	WHERE account_id = @account_id
	  AND (category IS NULL OR category = '' OR category = 'TBD')
	ORDER BY date DESC, transaction_number DESC`

const candidatesSQL = `
	SELECT ` + selectColumns + `
	FROM {{table}}
	WHERE account_id = @account_id
	  AND category = @category
	  AND reimbursement.is_reimbursement IS NULL
	  AND credit > 0
	  AND date > @cutover
	ORDER BY date DESC, transaction_number DESC`

const expensesSQL = `
	SELECT ` + selectColumns + `
	FROM {{table}}
	WHERE account_id = @account_id
	  AND debit > 0
	ORDER BY date DESC, transaction_number DESC
	LIMIT @limit`

const mergeCategoriesSQL = `
	MERGE {{table}} T
	USING UNNEST(@updates) S
	ON T.account_id = S.account_id AND T.transaction_number = S.transaction_number
	WHEN MATCHED THEN
	  UPDATE SET
	    T.category = S.category,
	    T.label = S.label,
	    T.last_updated = CURRENT_TIMESTAMP()`

// linkSQL updates both rows in one transaction. Each UPDATE re-checks the
// preconditions server-side; if either touches anything but exactly one row
// the script raises and the transaction rolls back.
const linkSQL = `
	BEGIN TRANSACTION;

	UPDATE {{table}}
	SET
	  reimbursement = STRUCT(
	    TRUE AS is_reimbursement,
	    FALSE AS has_reimbursement,
	    @debit_id AS to_transaction_id,
	    @linked_at AS linked_at,
	    ARRAY<STRUCT<from_transaction_id STRING, amount NUMERIC, linked_at TIMESTAMP>>[] AS reimbursement_list
	  ),
	  last_updated = @linked_at
	WHERE account_id = @credit_account
	  AND transaction_number = @credit_number
	  AND credit = @amount
	  AND credit > 0
	  AND reimbursement.is_reimbursement IS NULL
	  AND reimbursement.has_reimbursement IS NOT TRUE;

	IF @@row_count != 1 THEN
	  RAISE USING MESSAGE = '` + conflictMarker + `: credit changed or already linked';
	END IF;

	UPDATE {{table}}
	SET
	  original_debit = COALESCE(original_debit, debit),
	  debit = ROUND(debit - @amount, 2),
	  reimbursement = STRUCT(
	    FALSE AS is_reimbursement,
	    TRUE AS has_reimbursement,
	    CAST(NULL AS STRING) AS to_transaction_id,
	    @linked_at AS linked_at,
	    ARRAY_CONCAT(
	      COALESCE(reimbursement.reimbursement_list, []),
	      [STRUCT(@credit_id AS from_transaction_id, @amount AS amount, @linked_at AS linked_at)]
	    ) AS reimbursement_list
	  ),
	  last_updated = @linked_at
	WHERE account_id = @debit_account
	  AND transaction_number = @debit_number
	  AND debit > 0
	  AND credit = 0
	  AND (reimbursement IS NULL OR reimbursement.is_reimbursement IS NOT TRUE);

	IF @@row_count != 1 THEN
	  RAISE USING MESSAGE = '` + conflictMarker + `: debit changed or is a linked credit';
	END IF;

	COMMIT TRANSACTION;`

const callProcedureSQL = `CALL {{procedure}}()`

// tableRef is a fully qualified dataset location.
type tableRef struct {
	Project string
	Dataset string
	Table   string
}

func (r tableRef) qualified(name string) string {
	return fmt.Sprintf("`%s.%s.%s`", r.Project, r.Dataset, name)
}

// render substitutes the table placeholder in a statement.
func (r tableRef) render(sql string) string {
	return strings.ReplaceAll(sql, "{{table}}", r.qualified(r.Table))
}

// renderCall builds the CALL statement for a stored procedure in the dataset.
func (r tableRef) renderCall(procedure string) string {
	return strings.ReplaceAll(callProcedureSQL, "{{procedure}}", r.qualified(procedure))
}
