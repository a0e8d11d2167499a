package scanning

// receiptScanPrompt is the shared prompt used by all LLM providers for scanning receipts
const receiptScanPrompt = `You are analyzing a German purchase receipt (Kassenbon) or invoice (Rechnung). Carefully read all text in the image and extract:

1. **merchant**: the store or business name, usually the largest text at the top (e.g. "Aldi Süd", "OBI", "Aral").
2. **amount**: the final gross total including VAT ("Summe", "Gesamt", "Zu zahlen", "Total"), as a number (e.g. 42.75).
3. **date**: the purchase or invoice date converted to YYYY-MM-DD.
4. **vat_rate**: the VAT rate in percent, one of 0, 7 or 19. If several rates appear use the one carrying the largest VAT amount.
5. **vat_amount**: the VAT amount ("MwSt", "USt") for that rate, as a number.
6. **invoice_number**: the receipt or invoice number ("Beleg-Nr.", "Rechnungsnummer"), as a string.
7. **category**: one of Lebensmittel, Baumarkt, Baustoff, Tankstelle, Möbel, Elektronik, Telekommunikation, Energie, Entsorgung, Drogerie, Werkzeug, KFZ, Bürobedarf, Geschäftlich, Privat, Sonstige.

For each of merchant, amount and date give your confidence from 0 to 100 that the value is correct, plus an overall confidence for the whole receipt.

Return ONLY valid JSON in this exact format:
{
  "merchant": "Store Name",
  "amount": 0.00,
  "date": "YYYY-MM-DD",
  "vat_rate": 19,
  "vat_amount": 0.00,
  "invoice_number": "",
  "category": "Sonstige",
  "confidence_overall": 0,
  "confidence_merchant": 0,
  "confidence_amount": 0,
  "confidence_date": 0
}

Important:
- Amounts must be numbers (not strings) using a dot as decimal separator
- If you cannot find a field, use null for that field and a low confidence
- Do not include any text before or after the JSON
- Do not use markdown code blocks`
