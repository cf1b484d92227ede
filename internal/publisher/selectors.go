package publisher

// Selector fallback chains for the publishing console. The console's markup
// shifts between releases, so every interaction probes a chain of candidates
// in order and uses the first that matches. XPath entries start with //,
// everything else is CSS.

var loggedInSelectors = []string{
	`//a[contains(@href, 'bookshelf')]`,
	`//h1[contains(text(), 'Bookshelf')]`,
	`//span[contains(text(), 'Create')]`,
}

var signInLinkSelectors = []string{
	`//a[contains(text(), 'Sign in')]`,
	`a[href*="signin"]`,
}

var (
	emailFieldSelector    = `#ap_email`
	continueSelector      = `#continue`
	passwordFieldSelector = `#ap_password`
	signInSubmitSelector  = `#signInSubmit`
)

var createNewSelectors = []string{
	`//a[contains(text(), 'Create New')]`,
	`//span[contains(text(), 'Create New')]`,
	`//button[contains(text(), 'Create New')]`,
	`//a[contains(@href, 'create')]`,
}

var createEbookSelectors = []string{
	`//button[contains(text(), 'Create eBook')]`,
	`//a[contains(text(), 'Create eBook')]`,
	`//span[contains(text(), 'Create eBook')]`,
}

var formReadySelectors = []string{
	`//input[contains(@name, 'title') or contains(@id, 'title')]`,
	`//textarea[contains(@name, 'description') or contains(@id, 'description')]`,
	`//*[contains(text(), 'Book Details')]`,
}

var languageSelectSelectors = []string{
	`select[name*="language"]`,
	`select[id*="language"]`,
	`select[aria-label*="language"]`,
}

var titleFieldSelectors = []string{
	`//h3[contains(text(), 'Book Title')]/following-sibling::div//input`,
	`//div[contains(@class, 'book-title')]//input`,
	`//input[contains(@name, 'title')]`,
	`//input[contains(@id, 'title')]`,
}

var subtitleFieldSelectors = []string{
	`//input[contains(@name, 'subtitle')]`,
	`//input[contains(@id, 'subtitle')]`,
	`//div[contains(text(), 'Subtitle')]/following-sibling::div//input`,
}

var firstNameSelectors = []string{
	`input[placeholder="First name"]`,
	`//input[contains(@name, 'firstName')]`,
	`//input[contains(@id, 'firstName')]`,
}

var lastNameSelectors = []string{
	`input[placeholder="Last name"]`,
	`//input[contains(@name, 'lastName')]`,
	`//input[contains(@id, 'lastName')]`,
}

var descriptionFieldSelectors = []string{
	`//textarea[contains(@name, 'description')]`,
	`//textarea[contains(@id, 'description')]`,
	`//div[@contenteditable='true']`,
}

var keywordsFieldSelectors = []string{
	`//h3[contains(text(), 'Keywords')]/following-sibling::div//input[1]`,
	`//input[contains(@name, 'keywords')]`,
	`//input[contains(@id, 'keywords')]`,
}

var rightsRadioSelectors = []string{
	`//label[contains(text(), 'I own the copyright')]//input[@type='radio']`,
	`//label[contains(text(), 'I own the copyright')]/preceding-sibling::input[@type='radio']`,
	`//h3[contains(text(), 'Publishing Rights')]/following-sibling::div//input[@type='radio'][1]`,
}

var adultContentNoSelectors = []string{
	`//label[text()='No']/preceding-sibling::input[@type='radio']`,
	`//label[contains(text(), 'No')]//input[@type='radio']`,
	`//h3[contains(text(), 'Primary Audience')]/following-sibling::div//input[@type='radio'][2]`,
}

var categorySectionSelectors = []string{
	`//*[contains(text(), 'Categories')]`,
	`//button[contains(text(), 'Choose categories')]`,
}

var saveAndContinueSelectors = []string{
	`//button[contains(text(), 'Save and Continue')]`,
	`//input[@value='Save and Continue']`,
}

var contentPageSelectors = []string{
	`//h2[contains(text(), 'Kindle eBook Content')]`,
	`//h3[contains(text(), 'Content')]`,
	`//*[contains(text(), 'Upload your book cover')]`,
	`//*[contains(text(), 'Upload your manuscript')]`,
}

var coverUploadSelectors = []string{
	`//input[@type='file'][contains(@accept, 'image')]`,
	`//input[@type='file'][contains(@name, 'cover')]`,
	`//input[@type='file'][contains(@id, 'cover')]`,
}

var manuscriptUploadSelectors = []string{
	`//input[@type='file'][contains(@accept, '.epub')]`,
	`//input[@type='file'][contains(@name, 'manuscript')]`,
	`//input[@type='file'][not(contains(@accept, 'image'))]`,
}

var pricingPageSelectors = []string{
	`//h2[contains(text(), 'Kindle eBook Pricing')]`,
	`//h3[contains(text(), 'Pricing')]`,
	`//*[contains(text(), 'List Price')]`,
	`//*[contains(text(), 'Royalty')]`,
}

var priceFieldSelectors = []string{
	`//input[contains(@name, 'price')]`,
	`//input[contains(@id, 'price')]`,
	`//div[contains(text(), 'List Price')]/following-sibling::div//input`,
	`input[placeholder="0.00"]`,
}

var publishButtonSelectors = []string{
	`//button[contains(text(), 'Publish Your Kindle eBook')]`,
	`//button[contains(text(), 'Publish eBook')]`,
	`//button[contains(text(), 'Publish')]`,
	`//input[@value='Publish Your Kindle eBook']`,
	`//input[@value='Publish']`,
}

var publishConfirmSelectors = []string{
	`//button[contains(text(), 'Yes, publish')]`,
	`//button[contains(text(), 'Confirm')]`,
	`//input[@value='Confirm']`,
}

var publishSuccessSelectors = []string{
	`//*[contains(text(), 'published successfully')]`,
	`//*[contains(text(), 'Thank you')]`,
	`//*[contains(text(), 'submitted')]`,
	`//*[contains(text(), 'Bookshelf')]`,
}
