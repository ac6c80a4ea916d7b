package shipping

import "strings"

// Stop-words for the languages offers are written in.
var stopwordLists = map[string]string{
	"english": `
		a about above after again against all am an and any are as at be because been
		before being below between both but by can did do does doing down during each
		few for from further had has have having he her here hers herself him himself
		his how i if in into is it its itself just me more most my myself no nor not
		now of off on once only or other our ours ourselves out over own same she
		should so some such than that the their theirs them themselves then there
		these they this those through to too under until up very was we were what
		when where which while who whom why will with you your yours yourself
		yourselves`,
	"german": `
		aber alle allem allen aller alles als also am an ander andere anderem anderen
		anderer anderes auch auf aus bei bin bis bist da damit dann das dass dasselbe
		dazu dein deine deinem deinen deiner dem demselben den denn derselbe
		derselben des desselben dessen dich die dies diese dieselbe dieselben diesem
		diesen dieser dieses dir doch dort du durch ein eine einem einen einer eines
		einig einige einigem einigen einiger einiges einmal er es etwas euch euer
		eure eurem euren eurer für gegen gewesen hab habe haben hat hatte hatten hier
		hin hinter ich ihm ihn ihnen ihr ihre ihrem ihren ihrer ihres im in indem ins
		ist jede jedem jeden jeder jedes jene jenem jenen jener jenes jetzt kann kein
		keine keinem keinen keiner keines können könnte machen man manche manchem
		manchen mancher manches mein meine meinem meinen meiner meines mich mir mit
		muss musste nach nicht nichts noch nun nur ob oder ohne sehr sein seine
		seinem seinen seiner seines selbst sich sie sind so solche solchem solchen
		solcher solches soll sollte sondern sonst um und uns unser unsere unserem
		unseren unserer unseres unter viel vom von vor war waren warst was weg weil
		weiter welche welchem welchen welcher welches wenn werde werden wie wieder
		will wir wird wirst wo wollen wollte würde würden zu zum zur zwar zwischen`,
	"french": `
		au aux avec ce ces dans de des du elle en et eux il ils je la le les leur lui
		ma mais me même mes moi mon ne nos notre nous on ou par pas pour qu que qui
		sa se ses son sur ta te tes toi ton tu un une vos votre vous c d j l à m n s
		t y été étée étées étés étant suis es est sommes êtes sont serai seras sera
		serons serez seront ai as avons avez ont aurai auras aura aurons aurez auront`,
	"italian": `
		ad al allo ai agli all agl alla alle con col coi da dal dallo dai dagli dall
		dagl dalla dalle di del dello dei degli dell degl della delle in nel nello
		nei negli nell negl nella nelle su sul sullo sui sugli sull sugl sulla sulle
		per tra contro io tu lui lei noi voi loro mio mia miei mie tuo tua tuoi tue
		suo sua suoi sue nostro nostra nostri nostre vostro vostra vostri vostre mi
		ti ci vi lo la li le gli ne il un uno una ma ed se perché anche come dov dove
		che chi cui non più quale quanto quanti quanta quante quello quelli quella
		quelle questo questi questa queste si tutto tutti e è o ho hai ha abbiamo
		avete hanno sono sei siamo siete`,
	"spanish": `
		de la que el en y a los del se las por un para con no una su al lo como más
		pero sus le ya o este sí porque esta entre cuando muy sin sobre también me
		hasta hay donde quien desde todo nos durante todos uno les ni contra otros
		ese eso ante ellos e esto mí antes algunos qué unos yo otro otras otra él
		tanto esa estos mucho quienes nada muchos cual poco ella estar estas algunas
		algo nosotros mi mis tú te ti tu tus ellas nosotras vosotros vosotras os`,
	"portuguese": `
		de a o que e do da em um para com não uma os no se na por mais as dos como
		mas ao ele das à seu sua ou quando muito nos já eu também só pelo pela até
		isso ela entre depois sem mesmo aos seus quem nas me esse eles você essa num
		nem suas meu às minha numa pelos elas qual nós lhe deles essas esses pelas
		este dele tu te vocês vos lhes meus minhas teu tua teus tuas nosso nossa
		nossos nossas dela delas esta estes estas aquele aquela aqueles aquelas isto
		aquilo`,
	"dutch": `
		de en van ik te dat die in een hij het niet zijn is was op aan met als voor
		had er maar om hem dan zou of wat mijn men dit zo door over ze zich bij ook
		tot je mij uit der daar haar naar heb hoe heeft hebben deze u want nog zal me
		zij nu ge geen omdat iets worden toch al waren veel meer doen toen moet ben
		zonder kan hun dus alles onder ja eens hier wie werd altijd doch wordt
		wezen kunnen ons zelf tegen na reeds wil kon niets uw iemand geweest andere`,
}

func stopwordSet() map[string]struct{} {
	set := make(map[string]struct{}, 1024)
	for _, list := range stopwordLists {
		for _, w := range strings.Fields(list) {
			set[w] = struct{}{}
		}
	}
	return set
}
