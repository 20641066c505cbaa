package financial

import (
	"fmt"
	"slices"

	"finstat/pkg/core/rule"
)

// StatementDefinition pairs a statement type with the rules that populate it.
type StatementDefinition struct {
	Type  string
	Rules *rule.Group
}

// Catalogue is the ordered set of statement definitions a Factory
// evaluates. It is immutable after construction and safe to share.
type Catalogue struct {
	defs []StatementDefinition
}

// NewCatalogue creates a catalogue from defs, evaluated in the given order.
func NewCatalogue(defs ...StatementDefinition) *Catalogue {
	return &Catalogue{defs: slices.Clone(defs)}
}

// Definitions returns the statement definitions in evaluation order.
func (c *Catalogue) Definitions() []StatementDefinition {
	return slices.Clone(c.defs)
}

// Len returns the number of definitions.
func (c *Catalogue) Len() int { return len(c.defs) }

// DefaultCatalogue builds the standard set of statement definitions.
func DefaultCatalogue() (*Catalogue, error) {
	income, err := IncomeDefinition()
	if err != nil {
		return nil, err
	}
	return NewCatalogue(income), nil
}

const asbce = "filling/us-gaap:AllocatedShareBasedCompensationExpense"

// incomeItems maps income statement line items to the raw concept they copy.
var incomeItems = [][2]string{
	{"Revenue", "us-gaap:RevenueFromContractWithCustomerExcludingAssessedTax"},
	{"CostOfRevenue", "us-gaap:CostOfRevenue"},
	{"ResearchAndDevelopmentExpense", "us-gaap:ResearchAndDevelopmentExpense"},
	{"SellingAndMarketingExpense", "us-gaap:SellingAndMarketingExpense"},
	{"GeneralAndAdministrativeExpense", "us-gaap:GeneralAndAdministrativeExpense"},
	{"CostsAndExpenses", "us-gaap:CostsAndExpenses"},
	{"OperatingIncome", "us-gaap:OperatingIncomeLoss"},
	{"NonoperatingIncomeExpense", "us-gaap:NonoperatingIncomeExpense"},
	{"IncomeBeforeProvisionForIncomeTaxes", "us-gaap:IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest"},
	{"IncomeTaxExpenseBenefit", "us-gaap:IncomeTaxExpenseBenefit"},
	{"NetIncome", "us-gaap:NetIncomeLoss"},
	{"UndistributedEarningsLossAllocatedToParticipatingSecuritiesBasic", "us-gaap:UndistributedEarningsLossAllocatedToParticipatingSecuritiesBasic"},
	{"NetIncomeLossAvailableToCommonStockholdersBasic", "us-gaap:NetIncomeLossAvailableToCommonStockholdersBasic"},
	{"EarningsPerShareBasic", "us-gaap:EarningsPerShareBasic"},
	{"EarningsPerShareDiluted", "us-gaap:EarningsPerShareDiluted"},
	{"WeightedAverageNumberOfSharesOutstandingBasic", "us-gaap:WeightedAverageNumberOfSharesOutstandingBasic"},
	{"WeightedAverageNumberOfSharesOutstandingDiluted", "us-gaap:WeightedAverageNumberOfDilutedSharesOutstanding"},
}

// asbceLocations breaks share-based compensation down by income statement
// location.
var asbceLocations = [][2]string{
	{"ASBCECostOfSales", "us-gaap:CostOfSales"},
	{"ASBCEResearchAndDevelopmentExpense", "us-gaap:ResearchAndDevelopmentExpense"},
	{"ASBCESellingAndMarketingExpense", "us-gaap:SellingAndMarketingExpense"},
	{"ASBCEGeneralAndAdministrativeExpense", "us-gaap:GeneralAndAdministrativeExpense"},
}

// IncomeDefinition builds the income statement definition.
func IncomeDefinition() (StatementDefinition, error) {
	b := rule.NewBuilder()
	simple := func(item, input string) error {
		return b.Simple(StatementIncome+"/"+item, input)
	}

	for _, it := range incomeItems {
		if err := simple(it[0], FilingNamespace+"/"+it[1]); err != nil {
			return StatementDefinition{}, err
		}
	}
	if err := simple("ASBCE", asbce); err != nil {
		return StatementDefinition{}, err
	}
	for _, loc := range asbceLocations {
		if err := simple(loc[0], asbce+"#us-gaap:IncomeStatementLocationAxis="+loc[1]); err != nil {
			return StatementDefinition{}, err
		}
	}

	err := b.Rule(StatementIncome+"/GrossProfit", "",
		rule.Factor{Tag: StatementIncome + "/Revenue", Weight: 1},
		rule.Factor{Tag: StatementIncome + "/CostOfRevenue", Weight: -1},
	)
	if err != nil {
		return StatementDefinition{}, err
	}

	group, err := b.Build()
	if err != nil {
		return StatementDefinition{}, fmt.Errorf("income definition: %w", err)
	}
	return StatementDefinition{Type: StatementIncome, Rules: group}, nil
}
