package dialog

import (
	"fmt"
	"strings"

	"github.com/2haed/cs-market/internal/models"
	"github.com/2haed/cs-market/internal/services/adjuster"
)

// FormatTop renders ranked rows as the chat answer.
func FormatTop(itemType string, rows []models.RankedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Top 10 items: %s\n\n", itemType)
	for i, r := range rows {
		fmt.Fprintf(&b, "%d. %s\n", i+1, r.FullName)
		fmt.Fprintf(&b, "Market: %s $\n", money(r.MarketPrice))
		fmt.Fprintf(&b, "Current price: %s $\n", money(r.MarketCurrentPrice))
		fmt.Fprintf(&b, "Lis-skins: %s $\n", money(r.LisSkinsPrice))
		fmt.Fprintf(&b, "ROS: %s\n", percent(r.ROS))
		fmt.Fprintf(&b, "Net profit: %s $\n", money(r.NetProfit))
		fmt.Fprintf(&b, "Current profit: %s $\n", money(r.CurrentProfit))
		fmt.Fprintf(&b, "Sales in the last 7 days: %d\n", r.Sales7d)
		fmt.Fprintf(&b, "Market: %s | Lis-skins: %s\n\n", r.MarketURL, r.LisSkinsURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func FormatOutcomes(outcomes []adjuster.Outcome) string {
	if len(outcomes) == 0 {
		return "No active listings with a market price."
	}
	lines := make([]string, 0, len(outcomes)+1)
	lines = append(lines, "Price update results:")
	for _, o := range outcomes {
		lines = append(lines, o.String())
	}
	return strings.Join(lines, "\n")
}

func money(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func percent(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f %%", *v)
}
