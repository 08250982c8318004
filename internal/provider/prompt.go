package provider

import (
	"fmt"
	"time"
)

// BuildThaiInvoicePrompt returns the extraction prompt for Thai invoices and
// receipts. now anchors the Buddhist Era examples and the accepted year range.
func BuildThaiInvoicePrompt(now time.Time) string {
	ce := now.Year()
	be := ce + 543
	return fmt.Sprintf(`You are an invoice data extraction assistant specializing in Thai invoices and receipts. Analyze the image and extract:

1. Invoice or receipt date in YYYY-MM-DD format, Common Era.
2. Supplier or store name in English (translate or transliterate Thai names).

THAI BUDDHIST ERA (พ.ศ.)
Thailand uses the Buddhist Era, 543 years ahead of the Common Era.
- %[1]d CE = %[2]d BE, %[3]d CE = %[4]d BE, %[5]d CE = %[6]d BE
- If the year is greater than 2500 it is Buddhist Era: subtract 543.
- Read all four digits carefully. 2568 is often misread as 2558, 2554 or 2511.
- The final year must be between 2020 and %[7]d.
- Never return a Buddhist Era year. Wrong: "%[2]d-11-15". Correct: "%[1]d-11-15".

DATE FORMATS
- DD/MM/YYYY or DD/MM/YY (15/11/%[2]d becomes %[1]d-11-15)
- DD-MM-YYYY, YYYY-MM-DD, YYYYMMDD
- Text dates such as "15 Nov %[1]d" or "15 พ.ย. %[2]d"
Thai months: ม.ค.=Jan ก.พ.=Feb มี.ค.=Mar เม.ย.=Apr พ.ค.=May มิ.ย.=Jun ก.ค.=Jul ส.ค.=Aug ก.ย.=Sep ต.ค.=Oct พ.ย.=Nov ธ.ค.=Dec
Use the transaction date, not the print date. Look for "วันที่", "Date:" or a date inside the receipt number.

SUPPLIER NAME
Common suppliers: เซเว่น อีเลฟเว่น = "7-Eleven", แม็คโคร = "Makro", โลตัส = "Lotus", บิ๊กซี = "Big C", ท็อปส์ = "Tops", แฟมิลี่มาร์ท = "Family Mart", วิลล่า มาร์เก็ต = "Villa Market".
Otherwise use the name from the header, logo or tax ID section. Drop "บริษัท", "จำกัด" and "Co., Ltd.". Keep it to two or three words.

OUTPUT
Return ONLY a JSON object, no markdown and no explanation:
{"date": "YYYY-MM-DD", "supplier": "English Supplier Name", "originalSupplier": "Thai name if translated", "confidence": 0.0}
confidence is between 0 and 1.`,
		ce, be, ce-1, be-1, ce-2, be-2, ce+2)
}
