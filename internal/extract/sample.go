package extract

import "strings"

var sampleClauses = []string{
	"This Services Agreement is entered into between Acme Corporation and Globex Services LLC, effective as of January 1, 2024, for an initial term of 12 months.",
	"The Service Provider shall deliver the services described in Schedule A in a professional and workmanlike manner consistent with industry standards.",
	"The Client shall pay a monthly subscription fee of $2,500 per month. Invoices are payable Net 30 days from receipt of invoice. A late payment fee of 1.5% per month applies to overdue amounts.",
	"Consulting services are billed at $150 per hour and on-site support at $1,200 per day, plus reasonable pre-approved travel expenses.",
	"Each party shall keep confidential all non-public information disclosed by the other party and shall not disclose it to any third party without prior written consent.",
	"Either party may terminate this Agreement upon thirty days written notice if the other party materially breaches any provision and fails to cure the breach within that period.",
	"In no event shall either party be liable for any indirect, incidental or consequential damages, and total liability shall not exceed the fees paid in the preceding twelve months.",
	"All intellectual property rights in deliverables created under this Agreement shall vest in the Client upon full payment of the applicable fees.",
	"The Service Provider shall indemnify and hold harmless the Client from any third-party claims arising out of the Service Provider's gross negligence or wilful misconduct.",
	"This Agreement shall be governed by and construed in accordance with the laws of the State of Delaware, without regard to its conflict of laws principles.",
}

// clausesPerPage is how many sample clauses the generator lays on each page.
const clausesPerPage = 3

// SampleText builds placeholder contract text for documents without a text
// layer, cycling through a fixed clause pool to fill the given page count.
func SampleText(pages int) string {
	if pages <= 0 {
		pages = 1
	}
	n := pages * clausesPerPage
	if n < len(sampleClauses) {
		n = len(sampleClauses)
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, sampleClauses[i%len(sampleClauses)])
	}
	return strings.Join(out, "\n\n")
}
