package extract

const receiptPrompt = `Extract the key information from this receipt, invoice or bill.

Return ONLY valid raw JSON, no markdown fences, in this exact shape:
{
  "vendor": "store or vendor name, or null",
  "date": "YYYY-MM-DD",
  "total_amount": 123.45,
  "description": "short description of the purchase",
  "category_suggestion": "meals/office_supplies/travel/etc, or null",
  "confidence": 0.9
}

Rules:
- "total_amount" is the final total as a positive number with at most 2 decimal places.
- "date" is the transaction date in ISO format.
- Use null for any field you cannot determine.
- "confidence" is your certainty in the extraction, between 0 and 1.`

const checkPrompt = `Extract all information from this check image.

Return ONLY valid raw JSON, no markdown fences, in this exact shape:
{
  "check_number": "1234",
  "payee": "who the check is made out to",
  "amount": 500.00,
  "date": "YYYY-MM-DD",
  "memo": "memo line text, or null",
  "confidence": 0.9
}

Rules:
- "amount" is a positive number with at most 2 decimal places.
- Use null for any field you cannot determine.`

const creditCardStatementPrompt = `Extract the payment summary from this credit card statement.

Return ONLY valid raw JSON, no markdown fences, in this exact shape:
{
  "vendor": "card issuer name",
  "date": "YYYY-MM-DD",
  "total_amount": 321.09,
  "description": "statement period and card last 4 digits",
  "confidence": 0.9
}

Rules:
- "total_amount" is the new balance or total due as a positive number with at most 2 decimal places.
- "date" is the statement closing date.
- Use null for any field you cannot determine.`

const statementPrompt = `You are a financial statement parser. Parse this bank statement completely.

Return ONLY valid raw JSON, no markdown fences, no extra text, in this exact shape:
{
  "statement_date": "YYYY-MM-DD",
  "account_number_last4": "1234",
  "beginning_balance": 1000.00,
  "ending_balance": 900.00,
  "confidence": 0.9,
  "transactions": [
    {
      "date": "YYYY-MM-DD",
      "description": "full description text",
      "amount": -123.45,
      "check_number": "1234",
      "vendor_suggestion": "likely vendor name",
      "category_suggestion": "likely expense category",
      "confidence": 0.9
    }
  ]
}

Rules:
- Parse ALL transactions on ALL pages, in statement order.
- "amount" is negative for money out (debits, checks, fees) and positive for money in.
- Amounts have at most 2 decimal places.
- "check_number" is set only when the transaction is a check, otherwise null.
- If separate "paid out" / "paid in" columns exist, convert to a single signed "amount".
- Use null for any field you cannot determine.
- Output must begin with "{" and end with "}".`
